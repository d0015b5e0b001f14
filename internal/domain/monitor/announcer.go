package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/platform/speech"
)

// PlayerState is the state of the announcement player.
type PlayerState int

const (
	Idle PlayerState = iota
	Playing
)

func (s PlayerState) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Announcer speaks queued tasks one at a time. Tasks are played in the order
// they were enqueued, and every playback is followed by a settle delay
// before the next one starts, whether it finished, failed or was cancelled.
// Enqueue and Cancel may be called from any goroutine.
type Announcer struct {
	speaker speech.Speaker
	lang    string
	settle  time.Duration
	logger  zerolog.Logger

	mu        sync.Mutex
	state     PlayerState
	queue     []Task
	current   *Task
	stop      context.CancelFunc
	cancelled bool
	wake      chan struct{}

	// OnFinish, when set, is called after each playback with the task and
	// the playback error. Set it before Run.
	OnFinish func(Task, error)
}

func NewAnnouncer(speaker speech.Speaker, lang string, settle time.Duration, logger zerolog.Logger) *Announcer {
	return &Announcer{
		speaker: speaker,
		lang:    lang,
		settle:  settle,
		logger:  logger.With().Str("component", "announcer").Logger(),
		wake:    make(chan struct{}, 1),
	}
}

// holds reports whether id is pending or playing. A cancelled playback no
// longer holds its slot, so a slot called again right after a cancel is
// queued anew. Callers hold a.mu.
func (a *Announcer) holds(id uuid.UUID) bool {
	if a.current != nil && a.current.SlotID == id && !a.cancelled {
		return true
	}
	for _, t := range a.queue {
		if t.SlotID == id {
			return true
		}
	}
	return false
}

// Enqueue appends tasks in order. Tasks whose slot is already pending or
// playing are ignored.
func (a *Announcer) Enqueue(tasks ...Task) {
	a.mu.Lock()
	added := 0
	for _, t := range tasks {
		if a.holds(t.SlotID) {
			continue
		}
		a.queue = append(a.queue, t)
		added++
	}
	a.mu.Unlock()

	if added > 0 {
		select {
		case a.wake <- struct{}{}:
		default:
		}
	}
}

// Cancel drops the slot's pending task, or stops it if it is playing.
// It reports whether anything was cancelled.
func (a *Announcer) Cancel(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, t := range a.queue {
		if t.SlotID == id {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			a.logger.Debug().Str("slot_id", id.String()).Msg("pending announcement cancelled")
			return true
		}
	}
	if a.current != nil && a.current.SlotID == id && !a.cancelled {
		a.cancelled = true
		a.stop()
		a.logger.Debug().Str("slot_id", id.String()).Msg("playing announcement stopped")
		return true
	}
	return false
}

// Apply cancels the diff's departures, then enqueues its entries.
func (a *Announcer) Apply(d Diff) {
	for _, id := range d.Leave {
		a.Cancel(id)
	}
	a.Enqueue(d.Enter...)
}

func (a *Announcer) State() PlayerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Pending returns a copy of the tasks waiting to be spoken.
func (a *Announcer) Pending() []Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Task(nil), a.queue...)
}

// Current returns the task being spoken, if any.
func (a *Announcer) Current() (Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Task{}, false
	}
	return *a.current, true
}

// begin pops the next task and moves to Playing in one step so a Cancel
// racing with the pop always finds the task either queued or current.
func (a *Announcer) begin(ctx context.Context) (Task, context.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return Task{}, nil, false
	}
	t := a.queue[0]
	a.queue = a.queue[1:]

	playCtx, stop := context.WithCancel(ctx)
	a.state = Playing
	a.current = &t
	a.stop = stop
	a.cancelled = false
	return t, playCtx, true
}

func (a *Announcer) finish() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stop()
	cancelled := a.cancelled
	a.state = Idle
	a.current = nil
	a.stop = nil
	a.cancelled = false
	return cancelled
}

// Run plays queued tasks until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	for {
		task, playCtx, ok := a.begin(ctx)
		if !ok {
			select {
			case <-a.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		err := a.speaker.Speak(playCtx, task.Text, a.lang)
		cancelled := a.finish()

		switch {
		case ctx.Err() != nil:
			return
		case cancelled:
			a.logger.Info().Str("slot_id", task.SlotID.String()).Str("bed", task.BedLabel).Msg("announcement interrupted")
			err = context.Canceled
		case err != nil:
			a.logger.Warn().Err(err).Str("slot_id", task.SlotID.String()).Str("bed", task.BedLabel).Msg("announcement failed")
		default:
			a.logger.Info().Str("slot_id", task.SlotID.String()).Str("bed", task.BedLabel).Msg("announced")
		}
		if a.OnFinish != nil {
			a.OnFinish(task, err)
		}

		if !a.wait(ctx) {
			return
		}
	}
}

func (a *Announcer) wait(ctx context.Context) bool {
	if a.settle <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(a.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsInterrupted reports whether err marks a playback stopped by Cancel.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
