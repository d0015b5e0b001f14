package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/domain/roster"
)

const cliActor = "cli"

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the master patient roster",
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Copy the scheduled masters into a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			facility, _ := cmd.Flags().GetString("facility")
			dateStr, _ := cmd.Flags().GetString("date")
			shift, _ := cmd.Flags().GetString("shift")
			if facility == "" || shift == "" {
				return fmt.Errorf("--facility and --shift are required")
			}
			date, err := parseDate(dateStr)
			if err != nil {
				return err
			}

			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			changes, err := env.openFeed(ctx, false)
			if err != nil {
				return err
			}

			res, err := env.rosterService(env.slotService(changes)).LoadSession(ctx, facility, date, shift, cliActor)
			if err != nil {
				return err
			}
			fmt.Printf("Session %s (%s): %d scheduled, %d added.\n", res.SessionKey, res.DayGroup.Label(), res.Matched, res.Inserted)
			return nil
		},
	}
	loadCmd.Flags().String("facility", "", "Facility name")
	loadCmd.Flags().String("date", "", "Session date (YYYY-MM-DD, default today)")
	loadCmd.Flags().String("shift", "", "Shift")
	cmd.AddCommand(loadCmd)

	importCmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import a roster workbook for a facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facility, _ := cmd.Flags().GetString("facility")
			replace, _ := cmd.Flags().GetBool("replace")
			if facility == "" {
				return fmt.Errorf("--facility is required")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := env.rosterService(nil).Import(ctx, facility, f, replace)
			if err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				for _, re := range res.Errors {
					fmt.Printf("row %d: %s\n", re.Row, re.Message)
				}
				return fmt.Errorf("%d invalid row(s), nothing imported", len(res.Errors))
			}
			fmt.Printf("Imported %d master(s) for %s.\n", res.Imported, facility)
			return nil
		},
	}
	importCmd.Flags().String("facility", "", "Facility name")
	importCmd.Flags().Bool("replace", false, "Replace the facility's existing roster")
	cmd.AddCommand(importCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a roster workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			facility, _ := cmd.Flags().GetString("facility")
			out, _ := cmd.Flags().GetString("out")

			var w io.Writer = os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			return env.rosterService(nil).Export(ctx, roster.Filter{Facility: facility}, w)
		},
	}
	exportCmd.Flags().String("facility", "", "Facility name (default all)")
	exportCmd.Flags().String("out", "", "Output file (default stdout)")
	cmd.AddCommand(exportCmd)

	return cmd
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage call board sessions",
	}

	clearCmd := &cobra.Command{
		Use:   "clear <session-key>",
		Short: "Delete every slot in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := callslot.ParseSessionKey(args[0]); err != nil {
				return err
			}

			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			changes, err := env.openFeed(ctx, false)
			if err != nil {
				return err
			}

			n, err := env.slotService(changes).ClearSession(ctx, args[0], cliActor)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d slot(s) from %s.\n", n, args[0])
			return nil
		},
	}
	cmd.AddCommand(clearCmd)
	return cmd
}

// parseDate reads YYYY-MM-DD in local time. Empty means today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
