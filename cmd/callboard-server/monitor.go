package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/domain/monitor"
	"github.com/callboard/callboard/internal/platform/speech"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch a facility's sessions and announce patients being called",
		RunE: func(cmd *cobra.Command, args []string) error {
			facility, _ := cmd.Flags().GetString("facility")
			dateStr, _ := cmd.Flags().GetString("date")
			shiftsStr, _ := cmd.Flags().GetString("shifts")
			if facility == "" {
				return fmt.Errorf("--facility is required")
			}

			var date time.Time
			if dateStr != "" {
				d, err := parseDate(dateStr)
				if err != nil {
					return err
				}
				date = d
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			cfg, logger := env.cfg, env.logger

			shifts := cfg.MonitorShifts
			if shiftsStr != "" {
				shifts = nil
				for _, s := range strings.Split(shiftsStr, ",") {
					if s = strings.TrimSpace(s); s != "" {
						shifts = append(shifts, s)
					}
				}
			}

			changes, err := env.openFeed(ctx, true)
			if err != nil {
				return err
			}
			speaker, err := speech.New(speech.Config{
				Driver:        cfg.SpeechDriver,
				Command:       cfg.SpeechCommand,
				Endpoint:      cfg.SpeechEndpoint,
				APIKey:        cfg.SpeechAPIKey,
				PlayerCommand: cfg.AudioPlayerCommand,
			}, logger)
			if err != nil {
				return err
			}

			m, err := monitor.New(monitor.Config{
				Facility:    facility,
				Date:        date,
				Shifts:      shifts,
				Template:    cfg.AnnounceTemplate,
				Language:    cfg.SpeechLanguage,
				SettleDelay: cfg.AnnounceSettleDelay,
			}, callslot.NewLiveQuery(callslot.NewRepo(env.pool), changes, logger), speaker, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("facility", facility).
				Strs("shifts", shifts).
				Str("speech", cfg.SpeechDriver).
				Msg("monitor started")
			err = m.Run(ctx)
			logger.Info().Msg("monitor stopped")
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("facility", "", "Facility to watch")
	cmd.Flags().String("date", "", "Pin to one date (YYYY-MM-DD); default follows today")
	cmd.Flags().String("shifts", "", "Comma-separated shifts (default MONITOR_SHIFTS)")
	return cmd
}
