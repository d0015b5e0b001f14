package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Redis relays notifications through a Redis pub/sub channel so several
// server instances share one change stream.
type Redis struct {
	*Broker
	client *redis.Client
	logger zerolog.Logger
}

func NewRedis(client *redis.Client, logger zerolog.Logger) *Redis {
	return &Redis{
		Broker: NewBroker(),
		client: client,
		logger: logger.With().Str("component", "feed.redis").Logger(),
	}
}

func (r *Redis) Publish(ctx context.Context, key string) error {
	if err := r.client.Publish(ctx, RedisChannel, key).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Run subscribes to the channel and dispatches until ctx is cancelled.
// ready, when non-nil, is closed once the first subscription is confirmed.
func (r *Redis) Run(ctx context.Context, ready chan<- struct{}) {
	backoff := time.Second
	for {
		err := r.relay(ctx, ready)
		ready = nil
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("subscription lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (r *Redis) relay(ctx context.Context, ready chan<- struct{}) error {
	ps := r.client.Subscribe(ctx, RedisChannel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}
	if ready != nil {
		close(ready)
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel %s closed", RedisChannel)
			}
			r.Dispatch(msg.Payload)
		}
	}
}
