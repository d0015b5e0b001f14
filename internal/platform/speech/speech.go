// Package speech turns announcement text into sound. Every Speaker blocks
// until playback has finished, failed, or its context was cancelled.
package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// Player plays an encoded audio clip.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

type Config struct {
	Driver        string
	Command       string
	Endpoint      string
	APIKey        string
	PlayerCommand string
}

// New builds the speaker selected by cfg.Driver: "log", "command" or "remote".
func New(cfg Config, logger zerolog.Logger) (Speaker, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogSpeaker(logger, 0), nil
	case "command":
		return NewCommandSpeaker(cfg.Command)
	case "remote":
		player, err := NewCommandPlayer(cfg.PlayerCommand)
		if err != nil {
			return nil, err
		}
		return NewRemoteSpeaker(cfg.Endpoint, cfg.APIKey, player, logger), nil
	default:
		return nil, fmt.Errorf("unknown speech driver %q", cfg.Driver)
	}
}

// LogSpeaker writes announcements to the log instead of speaking them.
// A non-zero duration simulates playback time.
type LogSpeaker struct {
	logger   zerolog.Logger
	duration time.Duration
}

func NewLogSpeaker(logger zerolog.Logger, duration time.Duration) *LogSpeaker {
	return &LogSpeaker{logger: logger.With().Str("component", "speech").Logger(), duration: duration}
}

func (s *LogSpeaker) Speak(ctx context.Context, text, lang string) error {
	s.logger.Info().Str("lang", lang).Str("text", text).Msg("announce")
	if s.duration <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
