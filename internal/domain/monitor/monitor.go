// Package monitor drives the call board's monitor role: it merges the live
// sessions of a facility into one board and announces every patient who
// starts being called.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/platform/speech"
)

type Config struct {
	Facility string
	// Date pins the monitor to one day. When zero the monitor follows the
	// local date and switches sessions at midnight.
	Date        time.Time
	Shifts      []string
	Template    string
	Language    string
	SettleDelay time.Duration
}

// Monitor connects an Aggregator, a Differ and an Announcer.
type Monitor struct {
	cfg       Config
	src       Source
	differ    *Differ
	announcer *Announcer
	logger    zerolog.Logger
	now       func() time.Time

	mu   sync.Mutex
	view View
}

func New(cfg Config, src Source, speaker speech.Speaker, logger zerolog.Logger) (*Monitor, error) {
	if cfg.Facility == "" {
		return nil, fmt.Errorf("monitor: facility is required")
	}
	if len(cfg.Shifts) == 0 {
		return nil, fmt.Errorf("monitor: at least one shift is required")
	}
	tpl, err := NewTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}
	if cfg.Language == "" {
		cfg.Language = "ja-JP"
	}
	logger = logger.With().Str("facility", cfg.Facility).Logger()
	return &Monitor{
		cfg:       cfg,
		src:       src,
		differ:    NewDiffer(tpl),
		announcer: NewAnnouncer(speaker, cfg.Language, cfg.SettleDelay, logger),
		logger:    logger.With().Str("component", "monitor").Logger(),
		now:       time.Now,
	}, nil
}

// Announcer exposes the speech queue for status reporting.
func (m *Monitor) Announcer() *Announcer { return m.announcer }

// View returns the latest merged board.
func (m *Monitor) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *Monitor) keys(date time.Time) []string {
	keys := callslot.SessionKeys(date, m.cfg.Facility, m.cfg.Shifts)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func (m *Monitor) date() time.Time {
	if !m.cfg.Date.IsZero() {
		return m.cfg.Date
	}
	return m.now()
}

func untilMidnight(now time.Time) time.Duration {
	y, mo, d := now.Date()
	return time.Date(y, mo, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}

// Run watches the sessions and announces calls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.announcer.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	keys := m.keys(m.date())
	agg := NewAggregator(ctx, m.src, keys, m.logger)
	defer agg.Close()
	m.logger.Info().Strs("sessions", keys).Msg("monitor started")

	var rollover <-chan time.Time
	if m.cfg.Date.IsZero() {
		t := time.NewTimer(untilMidnight(m.now()))
		defer t.Stop()
		rollover = t.C
	}

	for {
		select {
		case v, ok := <-agg.Views():
			if !ok {
				return nil
			}
			m.handle(v)

		case <-rollover:
			keys = m.keys(m.now())
			m.logger.Info().Strs("sessions", keys).Msg("date changed, switching sessions")
			agg.Retarget(keys)
			rollover = time.After(untilMidnight(m.now()))

		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Monitor) handle(v View) {
	m.mu.Lock()
	m.view = v
	m.mu.Unlock()

	for key, msg := range v.Errors {
		m.logger.Warn().Str("session_key", key).Str("error", msg).Msg("session unavailable")
	}

	d := m.differ.Next(v.Slots)
	if d.Empty() {
		return
	}
	m.logger.Debug().Int("enter", len(d.Enter)).Int("leave", len(d.Leave)).Msg("call changes")
	m.announcer.Apply(d)
}
