package monitor

import (
	"sort"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/pkg/natsort"
)

// Task is one announcement waiting to be spoken. It lives only in memory.
type Task struct {
	SlotID     uuid.UUID `json:"slot_id"`
	SessionKey string    `json:"session_key"`
	Name       string    `json:"name"`
	BedLabel   string    `json:"bed_label"`
	Text       string    `json:"text"`
}

// Diff is the announcement work derived from two consecutive views.
type Diff struct {
	// Enter holds slots that newly entered being_called, ordered by bed label.
	Enter []Task
	// Leave holds slots that were being_called and no longer are, including
	// slots that disappeared.
	Leave []uuid.UUID
}

func (d Diff) Empty() bool {
	return len(d.Enter) == 0 && len(d.Leave) == 0
}

// Differ holds the previous view's being_called set and compares each new
// view against it. The first view is compared against an empty set, so
// slots already being called at start are announced.
type Differ struct {
	tpl     *Template
	calling map[uuid.UUID]struct{}
}

func NewDiffer(tpl *Template) *Differ {
	return &Differ{tpl: tpl, calling: make(map[uuid.UUID]struct{})}
}

// Next returns the difference between the previous slots and slots, then
// makes slots the new baseline.
func (d *Differ) Next(slots []*callslot.Slot) Diff {
	var diff Diff
	next := make(map[uuid.UUID]struct{})

	for _, s := range slots {
		if s.Status != callslot.StatusBeingCalled {
			continue
		}
		next[s.ID] = struct{}{}
		if _, ok := d.calling[s.ID]; ok {
			continue
		}
		name := s.SpokenName()
		diff.Enter = append(diff.Enter, Task{
			SlotID:     s.ID,
			SessionKey: s.SessionKey,
			Name:       name,
			BedLabel:   s.BedLabel,
			Text:       d.tpl.Render(name, s.BedLabel),
		})
	}
	for id := range d.calling {
		if _, ok := next[id]; !ok {
			diff.Leave = append(diff.Leave, id)
		}
	}

	sort.SliceStable(diff.Enter, func(i, j int) bool {
		a, b := diff.Enter[i], diff.Enter[j]
		if c := natsort.Compare(a.BedLabel, b.BedLabel); c != 0 {
			return c < 0
		}
		return a.SlotID.String() < b.SlotID.String()
	})
	sort.Slice(diff.Leave, func(i, j int) bool { return diff.Leave[i].String() < diff.Leave[j].String() })

	d.calling = next
	return diff
}
