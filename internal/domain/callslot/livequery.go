package callslot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/platform/feed"
	"github.com/callboard/callboard/pkg/natsort"
)

// Snapshot is the full content of one session at a point in time, or the
// error that prevented reading it.
type Snapshot struct {
	Key   string
	Slots []*Slot
	Err   error
}

// Stream delivers snapshots of one session in order until closed. After
// Close returns nothing more is delivered and Updates is closed.
type Stream interface {
	Updates() <-chan Snapshot
	Close()
}

// Subscriber is the subscribe half of a change feed.
type Subscriber interface {
	Subscribe(key string) *feed.Subscription
}

// SessionReader is the read half of the slot store.
type SessionReader interface {
	ListBySession(ctx context.Context, sessionKey string) ([]*Slot, error)
}

// LiveQuery turns change notifications into session snapshots: it reads
// the session once on start and again after every notification.
type LiveQuery struct {
	repo       SessionReader
	feed       Subscriber
	logger     zerolog.Logger
	retryAfter time.Duration
}

func NewLiveQuery(repo SessionReader, feed Subscriber, logger zerolog.Logger) *LiveQuery {
	return &LiveQuery{
		repo:       repo,
		feed:       feed,
		logger:     logger.With().Str("component", "livequery").Logger(),
		retryAfter: 5 * time.Second,
	}
}

// Watch starts a subscription on key. It stops when ctx is cancelled or the
// returned stream is closed.
func (q *LiveQuery) Watch(ctx context.Context, key string) Stream {
	ctx, cancel := context.WithCancel(ctx)
	w := &watch{
		out:    make(chan Snapshot),
		cancel: cancel,
	}

	sub := q.feed.Subscribe(key)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.out)
		defer sub.Close()
		q.run(ctx, key, sub, w.out)
	}()
	return w
}

func (q *LiveQuery) run(ctx context.Context, key string, sub *feed.Subscription, out chan<- Snapshot) {
	var retry <-chan time.Time
	for {
		slots, err := q.repo.ListBySession(ctx, key)
		if ctx.Err() != nil {
			return
		}
		snap := Snapshot{Key: key, Err: err}
		retry = nil
		if err != nil {
			q.logger.Warn().Err(err).Str("session_key", key).Msg("read session failed")
			retry = time.After(q.retryAfter)
		} else {
			natsort.Slice(slots, func(s *Slot) string { return s.BedLabel })
			snap.Slots = slots
		}

		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}

		select {
		case <-sub.C:
		case <-retry:
		case <-ctx.Done():
			return
		}
	}
}

type watch struct {
	out    chan Snapshot
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (w *watch) Updates() <-chan Snapshot { return w.out }

func (w *watch) Close() {
	w.cancel()
	w.wg.Wait()
}
