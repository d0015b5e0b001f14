package callslot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	mu          sync.Mutex
	slots       map[uuid.UUID]*Slot
	statusCalls int
	listErr     error
}

func newMockRepo() *mockRepo {
	return &mockRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockRepo) insert(s *Slot) error {
	key, err := ParseSessionKey(s.SessionKey)
	if err != nil {
		return err
	}
	s.ID = uuid.New()
	s.Facility = key.Facility
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockRepo) Create(_ context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(s)
}

func (m *mockRepo) CreateBatch(_ context.Context, slots []*Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range slots {
		if s.MasterPatientRef != nil && m.hasMaster(s.SessionKey, *s.MasterPatientRef) {
			continue
		}
		if err := m.insert(s); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (m *mockRepo) hasMaster(key string, ref uuid.UUID) bool {
	for _, s := range m.slots {
		if s.SessionKey == key && s.MasterPatientRef != nil && *s.MasterPatientRef == ref {
			return true
		}
	}
	return false
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) ListBySession(_ context.Context, key string) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := []*Slot{}
	for _, s := range m.slots {
		if s.SessionKey == key {
			cp := *s
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BedLabel < result[j].BedLabel })
	return result, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, updatedBy *string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if s.Status != from {
		return time.Time{}, ErrInvalidTransition
	}
	m.statusCalls++
	s.Status = to
	s.UpdatedBy = updatedBy
	s.UpdatedAt = time.Now()
	return s.UpdatedAt, nil
}

func (m *mockRepo) UpdateDisplay(_ context.Context, upd *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[upd.ID]
	if !ok {
		return ErrNotFound
	}
	s.Name = upd.Name
	s.FuriganaName = upd.FuriganaName
	s.BedLabel = upd.BedLabel
	s.UpdatedBy = upd.UpdatedBy
	s.UpdatedAt = time.Now()
	upd.UpdatedAt = s.UpdatedAt
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *mockRepo) DeleteBySession(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.slots {
		if s.SessionKey == key {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) setStatus(id uuid.UUID, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[id].Status = status
}

// -- Recording collaborators --

type recordingChanges struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingChanges) Publish(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingChanges) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
