package monitor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/domain/callslot"
)

// Source opens live queries on sessions. callslot.LiveQuery implements it.
type Source interface {
	Watch(ctx context.Context, key string) callslot.Stream
}

// View is the merged board across several sessions.
type View struct {
	Keys    []string          `json:"keys"`
	Slots   []*callslot.Slot  `json:"slots"`
	Loading bool              `json:"loading"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// shift is the aggregator's record of one session subscription.
type shift struct {
	key       string
	stream    callslot.Stream
	slots     []*callslot.Slot
	delivered bool
	err       error
}

type delivery struct {
	gen  int
	idx  int
	snap callslot.Snapshot
}

type retarget struct {
	keys []string
	done chan struct{}
}

// Aggregator merges the live queries of several sessions, typically the
// shifts of one facility and date, into one View. All deliveries are handled
// by a single loop goroutine, so no ordering between sessions is assumed.
//
// Loading stays true until every session has delivered once, successfully or
// not, and is never true again afterwards. A session whose first read failed
// contributes no slots; one that fails later keeps its last known slots. In
// both cases the error is reported in View.Errors.
type Aggregator struct {
	src    Source
	logger zerolog.Logger

	deliveries chan delivery
	retargets  chan retarget
	views      chan View

	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop
	gen     int
	shifts  []*shift
	fwd     sync.WaitGroup
	fwdStop chan struct{}
	loaded  bool
}

func NewAggregator(ctx context.Context, src Source, keys []string, logger zerolog.Logger) *Aggregator {
	ctx, cancel := context.WithCancel(ctx)
	a := &Aggregator{
		src:        src,
		logger:     logger.With().Str("component", "aggregator").Logger(),
		deliveries: make(chan delivery),
		retargets:  make(chan retarget),
		views:      make(chan View),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	a.open(ctx, keys)
	go a.loop(ctx)
	return a
}

// Views delivers merged views. Views are coalesced: a slow reader sees the
// latest view, not every intermediate one. The channel is closed by Close.
func (a *Aggregator) Views() <-chan View { return a.views }

// Retarget replaces the watched sessions. Every existing subscription is
// closed before the new ones are opened.
func (a *Aggregator) Retarget(keys []string) {
	r := retarget{keys: append([]string(nil), keys...), done: make(chan struct{})}
	select {
	case a.retargets <- r:
		<-r.done
	case <-a.done:
	}
}

// Close stops every subscription. No view is delivered after it returns.
func (a *Aggregator) Close() {
	a.cancel()
	<-a.done
}

func (a *Aggregator) open(ctx context.Context, keys []string) {
	a.gen++
	a.fwdStop = make(chan struct{})
	a.shifts = make([]*shift, len(keys))
	for i, key := range keys {
		sh := &shift{key: key, stream: a.src.Watch(ctx, key)}
		a.shifts[i] = sh
		a.fwd.Add(1)
		go a.forward(a.gen, i, sh.stream, a.fwdStop)
	}
}

func (a *Aggregator) forward(gen, idx int, stream callslot.Stream, stop <-chan struct{}) {
	defer a.fwd.Done()
	for {
		select {
		case snap, ok := <-stream.Updates():
			if !ok {
				return
			}
			select {
			case a.deliveries <- delivery{gen: gen, idx: idx, snap: snap}:
			case <-stop:
				return
			}
		case <-stop:
			return
		}
	}
}

func (a *Aggregator) closeAll() {
	close(a.fwdStop)
	for _, sh := range a.shifts {
		sh.stream.Close()
	}
	a.fwd.Wait()
	a.shifts = nil
}

func (a *Aggregator) loop(ctx context.Context) {
	defer close(a.done)
	defer close(a.views)
	defer a.closeAll()

	var pending *View
	for {
		var out chan View
		var next View
		if pending != nil {
			out = a.views
			next = *pending
		}

		select {
		case d := <-a.deliveries:
			if d.gen != a.gen {
				continue
			}
			a.apply(d)
			v := a.merge()
			pending = &v

		case r := <-a.retargets:
			a.closeAll()
			a.open(ctx, r.keys)
			v := a.merge()
			pending = &v
			close(r.done)

		case out <- next:
			pending = nil

		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) apply(d delivery) {
	sh := a.shifts[d.idx]
	sh.delivered = true
	sh.err = d.snap.Err
	if d.snap.Err != nil {
		a.logger.Warn().Err(d.snap.Err).Str("session_key", sh.key).Msg("session unavailable")
		return
	}
	sh.slots = d.snap.Slots
}

func (a *Aggregator) merge() View {
	v := View{Keys: make([]string, 0, len(a.shifts)), Slots: []*callslot.Slot{}}
	all := true
	for _, sh := range a.shifts {
		v.Keys = append(v.Keys, sh.key)
		v.Slots = append(v.Slots, sh.slots...)
		if !sh.delivered {
			all = false
		}
		if sh.err != nil {
			if v.Errors == nil {
				v.Errors = make(map[string]string)
			}
			v.Errors[sh.key] = sh.err.Error()
		}
	}
	if all {
		a.loaded = true
	}
	v.Loading = !a.loaded
	return v
}
