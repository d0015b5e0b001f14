package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/callboard/callboard/internal/platform/db"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Postgres publishes with pg_notify and listens on a dedicated pooled
// connection. Notifications issued inside a transaction are delivered by the
// server only after commit.
type Postgres struct {
	*Broker
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{
		Broker: NewBroker(),
		pool:   pool,
		logger: logger.With().Str("component", "feed.postgres").Logger(),
	}
}

func (p *Postgres) Publish(ctx context.Context, key string) error {
	const q = `SELECT pg_notify($1, $2)`
	var err error
	if tx := db.TxFromContext(ctx); tx != nil {
		_, err = tx.Exec(ctx, q, Channel, key)
	} else {
		_, err = p.pool.Exec(ctx, q, Channel, key)
	}
	if err != nil {
		return fmt.Errorf("notify %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Run listens until ctx is cancelled, reconnecting with a capped backoff when
// the listening connection drops. After a reconnect every subscriber is
// signalled once, since notifications sent while disconnected are lost.
func (p *Postgres) Run(ctx context.Context) {
	var delay time.Duration
	for {
		established, err := p.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		delay = nextBackoff(delay, established)
		p.logger.Warn().Err(err).Dur("retry_in", delay).Msg("listen connection lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextBackoff returns the wait before the next listen attempt. A session that
// got as far as LISTEN starts over from minBackoff.
func nextBackoff(prev time.Duration, established bool) time.Duration {
	if established || prev < minBackoff {
		return minBackoff
	}
	return min(prev*2, maxBackoff)
}

// listen reports whether LISTEN succeeded before the session ended.
func (p *Postgres) listen(ctx context.Context) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire listen connection: %w", err)
	}
	defer releaseListener(pooledListener{conn}, p.logger)

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return false, fmt.Errorf("listen %s: %w", Channel, err)
	}
	p.logger.Info().Str("channel", Channel).Msg("listening for changes")
	p.resyncAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		p.Dispatch(n.Payload)
	}
}

type listenerConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Release()
	Discard(ctx context.Context) error
}

type pooledListener struct {
	*pgxpool.Conn
}

// Discard takes the connection out of the pool and closes it.
func (c pooledListener) Discard(ctx context.Context) error {
	return c.Hijack().Close(ctx)
}

// releaseListener drops the subscription before the connection goes back to
// the pool. A connection that cannot UNLISTEN is closed instead.
func releaseListener(c listenerConn, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Exec(ctx, "UNLISTEN *"); err != nil {
		logger.Warn().Err(err).Msg("unlisten failed, closing listen connection")
		if err := c.Discard(ctx); err != nil {
			logger.Debug().Err(err).Msg("close listen connection")
		}
		return
	}
	c.Release()
}

func (p *Postgres) resyncAll() {
	p.mu.RLock()
	keys := make([]string, 0, len(p.subs))
	for k := range p.subs {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	for _, k := range keys {
		p.Dispatch(k)
	}
}
