package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain/callslot"
)

// -- Speaker fakes --

// recordingSpeaker records every text it is asked to speak. When block is
// set, each Speak waits for a release or for its context to end.
type recordingSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	started chan string
	release chan struct{}
	block   bool
	failOn  map[string]bool
}

func newRecordingSpeaker(block bool) *recordingSpeaker {
	return &recordingSpeaker{
		started: make(chan string, 16),
		release: make(chan struct{}),
		block:   block,
		failOn:  map[string]bool{},
	}
}

func (s *recordingSpeaker) Speak(ctx context.Context, text, _ string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	fail := s.failOn[text]
	s.mu.Unlock()
	s.started <- text

	if fail {
		return errors.New("synthesis failed")
	}
	if !s.block {
		return nil
	}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *recordingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func waitStarted(t *testing.T, s *recordingSpeaker, want string) {
	t.Helper()
	select {
	case got := <-s.started:
		if got != want {
			t.Fatalf("expected %q to start, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to start", want)
	}
}

// -- Live query fakes --

type fakeStream struct {
	key    string
	ch     chan callslot.Snapshot
	closed chan struct{}
	once   sync.Once
	src    *fakeSource
}

func (s *fakeStream) Updates() <-chan callslot.Snapshot { return s.ch }

func (s *fakeStream) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.src.record("close " + s.key)
	})
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeSource hands out fakeStreams and logs every open and close in order.
type fakeSource struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	log     []string
	initial map[string][]*callslot.Slot
}

func newFakeSource() *fakeSource {
	return &fakeSource{streams: make(map[string]*fakeStream), initial: make(map[string][]*callslot.Slot)}
}

func (f *fakeSource) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, entry)
}

func (f *fakeSource) Watch(_ context.Context, key string) callslot.Stream {
	s := &fakeStream{key: key, ch: make(chan callslot.Snapshot, 4), closed: make(chan struct{}), src: f}
	f.mu.Lock()
	f.streams[key] = s
	f.log = append(f.log, "open "+key)
	if slots, ok := f.initial[key]; ok {
		s.ch <- callslot.Snapshot{Key: key, Slots: slots}
	}
	f.mu.Unlock()
	return s
}

func (f *fakeSource) stream(t *testing.T, key string) *fakeStream {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[key]
	if !ok {
		t.Fatalf("no stream for %s", key)
	}
	return s
}

func (f *fakeSource) push(t *testing.T, key string, slots []*callslot.Slot, err error) {
	t.Helper()
	select {
	case f.stream(t, key).ch <- callslot.Snapshot{Key: key, Slots: slots, Err: err}:
	case <-time.After(2 * time.Second):
		t.Fatalf("push to %s blocked", key)
	}
}

func (f *fakeSource) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

// -- Slot helpers --

func slot(key, bed string, status callslot.Status) *callslot.Slot {
	return &callslot.Slot{
		ID:         uuid.New(),
		SessionKey: key,
		Name:       "患者" + bed,
		BedLabel:   bed,
		Status:     status,
	}
}

// bedOnlyTemplate renders just the bed label for slots built by unnamedSlot,
// so spoken text can be compared against bed labels.
const bedOnlyTemplate = "{{bed}}{{name}}"

func unnamedSlot(key, bed string, status callslot.Status) *callslot.Slot {
	s := slot(key, bed, status)
	s.Name = ""
	return s
}

func withStatus(s *callslot.Slot, status callslot.Status) *callslot.Slot {
	cp := *s
	cp.Status = status
	return &cp
}

func task(bed string) Task {
	return Task{SlotID: uuid.New(), BedLabel: bed, Text: bed}
}
