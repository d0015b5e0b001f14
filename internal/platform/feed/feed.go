// Package feed carries "something in this session changed" notifications
// between writers and live queries. A notification only names the session
// key; subscribers re-read the store to learn what changed.
package feed

import (
	"context"
	"sync"
)

// Channel is the Postgres NOTIFY channel and the Redis pub/sub channel.
const Channel = "callboard_changes"

// RedisChannel is the pub/sub channel used by the Redis driver.
const RedisChannel = "callboard:changes"

// Feed publishes and delivers change notifications keyed by session.
type Feed interface {
	Publish(ctx context.Context, key string) error
	Subscribe(key string) *Subscription
	Ping(ctx context.Context) error
}

// Subscription receives a signal on C whenever its key changes. Signals
// coalesce: a burst of notifications that arrives while the consumer is busy
// is delivered as one.
type Subscription struct {
	C <-chan struct{}

	key   string
	ch    chan struct{}
	once  sync.Once
	owner *Broker
}

// Key returns the session key this subscription listens on.
func (s *Subscription) Key() string { return s.key }

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.remove(s)
	})
}

func (s *Subscription) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Broker fans notifications out to local subscribers. It is the in-process
// half of every driver and, on its own, the memory driver.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*Subscription]struct{})}
}

func (b *Broker) Subscribe(key string) *Subscription {
	ch := make(chan struct{}, 1)
	sub := &Subscription{C: ch, key: key, ch: ch, owner: b}

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[key] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Dispatch signals every local subscriber of key.
func (b *Broker) Dispatch(key string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[key] {
		sub.notify()
	}
}

// Publish dispatches locally.
func (b *Broker) Publish(ctx context.Context, key string) error {
	b.Dispatch(key)
	return nil
}

func (b *Broker) Ping(ctx context.Context) error { return nil }

// SubscriberCount returns the number of open subscriptions for key.
func (b *Broker) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.key]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.key)
	}
}
