package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/config"
	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/domain/roster"
	"github.com/callboard/callboard/internal/platform/db"
	"github.com/callboard/callboard/internal/platform/feed"
)

// environment holds what every command needs: validated config, a logger
// and a database pool.
type environment struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	closes []func()
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func openEnv(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env, os.Stdout)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	return &environment{cfg: cfg, logger: logger, pool: pool, closes: []func(){pool.Close}}, nil
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() {
	for i := len(e.closes) - 1; i >= 0; i-- {
		e.closes[i]()
	}
}

// openFeed builds the change feed selected by FEED_DRIVER. With listen the
// feed also receives notifications from other processes until ctx ends;
// commands that only write skip that.
func (e *environment) openFeed(ctx context.Context, listen bool) (feed.Feed, error) {
	switch e.cfg.FeedDriver {
	case "memory":
		if listen {
			e.logger.Warn().Msg("memory feed: changes made by other processes are not seen")
		}
		return feed.NewBroker(), nil

	case "redis":
		opt, err := redis.ParseURL(e.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		e.closes = append(e.closes, func() { client.Close() })

		f := feed.NewRedis(client, e.logger)
		if err := f.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		if listen {
			ready := make(chan struct{})
			go f.Run(ctx, ready)
			select {
			case <-ready:
			case <-time.After(5 * time.Second):
				e.logger.Warn().Msg("redis subscription not confirmed yet, continuing")
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return f, nil

	default:
		f := feed.NewPostgres(e.pool, e.logger)
		if listen {
			go f.Run(ctx)
		}
		return f, nil
	}
}

func (e *environment) slotService(changes callslot.ChangePublisher) *callslot.Service {
	return callslot.NewService(callslot.NewRepo(e.pool), changes, e.logger)
}

func (e *environment) rosterService(slots *callslot.Service) *roster.Service {
	return roster.NewService(roster.NewRepo(e.pool), slots, e.logger)
}
