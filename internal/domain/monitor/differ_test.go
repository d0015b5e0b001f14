package monitor

import (
	"testing"

	"github.com/callboard/callboard/internal/domain/callslot"
)

const key1 = "2024-06-03_F_1"

func beds(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.BedLabel
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestDiffer(t *testing.T) *Differ {
	tpl, err := NewTemplate("{{name}} {{bed}}")
	if err != nil {
		t.Fatal(err)
	}
	return NewDiffer(tpl)
}

func TestDiffer_FirstViewAnnouncesCurrentCalls(t *testing.T) {
	d := newTestDiffer(t)
	d1 := d.Next([]*callslot.Slot{
		slot(key1, "1", callslot.StatusInTreatment),
		slot(key1, "2", callslot.StatusBeingCalled),
	})
	if got := beds(d1.Enter); !equal(got, []string{"2"}) {
		t.Errorf("expected [2], got %v", got)
	}
	if len(d1.Leave) != 0 {
		t.Errorf("expected no leaves, got %v", d1.Leave)
	}
}

func TestDiffer_SimultaneousEntriesSortedByBed(t *testing.T) {
	d := newTestDiffer(t)
	s10 := slot(key1, "10", callslot.StatusInTreatment)
	s2 := slot(key1, "2", callslot.StatusInTreatment)
	s1 := slot(key1, "1", callslot.StatusInTreatment)
	d.Next([]*callslot.Slot{s10, s2, s1})

	diff := d.Next([]*callslot.Slot{
		withStatus(s10, callslot.StatusBeingCalled),
		withStatus(s2, callslot.StatusBeingCalled),
		withStatus(s1, callslot.StatusBeingCalled),
	})
	if got := beds(diff.Enter); !equal(got, []string{"1", "2", "10"}) {
		t.Errorf("expected [1 2 10], got %v", got)
	}
}

func TestDiffer_StillCallingIsNotRepeated(t *testing.T) {
	d := newTestDiffer(t)
	s := slot(key1, "3", callslot.StatusBeingCalled)
	d.Next([]*callslot.Slot{s})

	diff := d.Next([]*callslot.Slot{s, slot(key1, "4", callslot.StatusInTreatment)})
	if !diff.Empty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
}

func TestDiffer_LeavesOnStatusChangeAndRemoval(t *testing.T) {
	d := newTestDiffer(t)
	a := slot(key1, "1", callslot.StatusBeingCalled)
	b := slot(key1, "2", callslot.StatusBeingCalled)
	c := slot(key1, "3", callslot.StatusBeingCalled)
	d.Next([]*callslot.Slot{a, b, c})

	diff := d.Next([]*callslot.Slot{
		withStatus(a, callslot.StatusInTreatment),
		withStatus(b, callslot.StatusDischarged),
	})
	if len(diff.Leave) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(diff.Leave))
	}
	left := map[string]bool{}
	for _, id := range diff.Leave {
		left[id.String()] = true
	}
	for _, s := range []*callslot.Slot{a, b, c} {
		if !left[s.ID.String()] {
			t.Errorf("expected %s to leave", s.BedLabel)
		}
	}
}

func TestDiffer_RecallIsAnnouncedAgain(t *testing.T) {
	d := newTestDiffer(t)
	s := slot(key1, "5", callslot.StatusBeingCalled)
	d.Next([]*callslot.Slot{s})
	d.Next([]*callslot.Slot{withStatus(s, callslot.StatusInTreatment)})

	diff := d.Next([]*callslot.Slot{s})
	if len(diff.Enter) != 1 {
		t.Errorf("expected slot to be announced again, got %+v", diff)
	}
}

func TestDiffer_UsesFurigana(t *testing.T) {
	d := newTestDiffer(t)
	s := slot(key1, "7", callslot.StatusBeingCalled)
	s.Name = "山田 太郎"
	reading := "やまだ たろう"
	s.FuriganaName = &reading

	diff := d.Next([]*callslot.Slot{s})
	if diff.Enter[0].Text != "やまだ たろう 7" {
		t.Errorf("unexpected text %q", diff.Enter[0].Text)
	}
}

func TestTemplate(t *testing.T) {
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatal(err)
	}
	if got := tpl.Render("さとう", "12"); got != "さとうさん、12番ベッドへお迎えをお願いします。" {
		t.Errorf("unexpected default rendering %q", got)
	}
	if _, err := NewTemplate("bed {{bed}}"); err == nil {
		t.Error("expected error for template without {{name}}")
	}
}
