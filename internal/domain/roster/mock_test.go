package roster

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/pkg/natsort"
	"github.com/callboard/callboard/pkg/pagination"
)

// -- Mock Repository --

type mockRepo struct {
	mu      sync.Mutex
	masters map[uuid.UUID]*MasterPatient
	writes  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{masters: make(map[uuid.UUID]*MasterPatient)}
}

func (m *mockRepo) insert(p *MasterPatient) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.masters[p.ID] = &cp
}

func (m *mockRepo) Create(_ context.Context, p *MasterPatient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.insert(p)
	return nil
}

func (m *mockRepo) CreateBatch(_ context.Context, ps []*MasterPatient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for _, p := range ps {
		m.insert(p)
	}
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*MasterPatient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.masters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *MasterPatient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.masters[p.ID]
	if !ok {
		return ErrNotFound
	}
	m.writes++
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	cp := *p
	m.masters[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.masters[id]; !ok {
		return ErrNotFound
	}
	m.writes++
	delete(m.masters, id)
	return nil
}

func (m *mockRepo) match(f Filter) []*MasterPatient {
	var out []*MasterPatient
	for _, p := range m.masters {
		if f.Facility != "" && p.Facility != f.Facility {
			continue
		}
		if f.DayGroup != "" && p.DayGroup != f.DayGroup {
			continue
		}
		if f.Shift != "" && p.Shift != f.Shift {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	natsort.Slice(out, func(p *MasterPatient) string { return p.BedLabel })
	return out
}

func (m *mockRepo) List(_ context.Context, f Filter, page pagination.Params) ([]*MasterPatient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.match(f)
	total := len(all)
	if page.Offset >= total {
		return []*MasterPatient{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return all[page.Offset:end], total, nil
}

func (m *mockRepo) ListAll(_ context.Context, f Filter) ([]*MasterPatient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match(f), nil
}

func (m *mockRepo) ReplaceFacility(_ context.Context, facility string, ps []*MasterPatient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for id, p := range m.masters {
		if p.Facility == facility {
			delete(m.masters, id)
		}
	}
	for _, p := range ps {
		m.insert(p)
	}
	return nil
}

// -- Fake slot batcher --

// fakeBatcher stores slots per session and skips masters already present,
// like the call slot store does.
type fakeBatcher struct {
	mu       sync.Mutex
	sessions map[string][]*callslot.Slot
	actors   []string
}

func newFakeBatcher() *fakeBatcher {
	return &fakeBatcher{sessions: make(map[string][]*callslot.Slot)}
}

func (b *fakeBatcher) CreateBatch(_ context.Context, key string, slots []*callslot.Slot, actor string) (int, error) {
	if _, err := callslot.ParseSessionKey(key); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actors = append(b.actors, actor)

	have := map[uuid.UUID]bool{}
	for _, s := range b.sessions[key] {
		if s.MasterPatientRef != nil {
			have[*s.MasterPatientRef] = true
		}
	}
	n := 0
	for _, s := range slots {
		if s.MasterPatientRef != nil && have[*s.MasterPatientRef] {
			continue
		}
		s.ID = uuid.New()
		s.SessionKey = key
		s.Status = callslot.StatusInTreatment
		b.sessions[key] = append(b.sessions[key], s)
		n++
	}
	return n, nil
}

func ptr(s string) *string { return &s }
