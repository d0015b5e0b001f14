package roster

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/callboard/callboard/pkg/pagination"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func seed(t *testing.T, repo *mockRepo, ms ...*MasterPatient) {
	t.Helper()
	for _, m := range ms {
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func master(facility, name, bed string, group DayGroup, shift string) *MasterPatient {
	return &MasterPatient{Facility: facility, Name: name, BedLabel: bed, DayGroup: group, Shift: shift}
}

func TestService_LoadSession_MondayShiftOne(t *testing.T) {
	repo := newMockRepo()
	slots := newFakeBatcher()
	svc := NewService(repo, slots, zerolog.Nop())

	seed(t, repo,
		master("F", "Sato", "10", DayGroupMonWedFri, "1"),
		master("F", "Suzuki", "2", DayGroupMonWedFri, "1"),
		master("F", "Takahashi", "1", DayGroupMonWedFri, "1"),
		master("F", "Tanaka", "4", DayGroupMonWedFri, "2"),
		master("F", "Ito", "5", DayGroupTueThuSat, "1"),
		master("G", "Watanabe", "6", DayGroupMonWedFri, "1"),
	)

	res, err := svc.LoadSession(context.Background(), "F", day("2024-06-03"), "1", "nurse-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionKey != "2024-06-03_F_1" {
		t.Errorf("unexpected session key %q", res.SessionKey)
	}
	if res.DayGroup != DayGroupMonWedFri {
		t.Errorf("expected mon_wed_fri, got %s", res.DayGroup)
	}
	if res.Matched != 3 || res.Inserted != 3 {
		t.Errorf("expected 3 matched and inserted, got %+v", res)
	}

	got := slots.sessions["2024-06-03_F_1"]
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	wantBeds := []string{"1", "2", "10"}
	for i, s := range got {
		if s.BedLabel != wantBeds[i] {
			t.Errorf("slot %d: expected bed %s, got %s", i, wantBeds[i], s.BedLabel)
		}
		if s.MasterPatientRef == nil {
			t.Errorf("slot %d: expected master ref", i)
		}
		if s.IsTemporary {
			t.Errorf("slot %d: roster slots must not be temporary", i)
		}
	}
	if len(slots.sessions) != 1 {
		t.Errorf("expected only one session touched, got %d", len(slots.sessions))
	}
}

func TestService_LoadSession_RepeatDoesNotDuplicate(t *testing.T) {
	repo := newMockRepo()
	slots := newFakeBatcher()
	svc := NewService(repo, slots, zerolog.Nop())
	seed(t, repo,
		master("F", "Sato", "1", DayGroupTueThuSat, "2"),
		master("F", "Suzuki", "2", DayGroupTueThuSat, "2"),
	)

	ctx := context.Background()
	if _, err := svc.LoadSession(ctx, "F", day("2024-06-04"), "2", ""); err != nil {
		t.Fatalf("first load: %v", err)
	}
	res, err := svc.LoadSession(ctx, "F", day("2024-06-04"), "2", "")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if res.Matched != 2 || res.Inserted != 0 {
		t.Errorf("expected 2 matched, 0 inserted, got %+v", res)
	}
	if n := len(slots.sessions["2024-06-04_F_2"]); n != 2 {
		t.Errorf("expected 2 slots after repeat load, got %d", n)
	}
}

func TestService_LoadSession_Sunday(t *testing.T) {
	svc := NewService(newMockRepo(), newFakeBatcher(), zerolog.Nop())
	_, err := svc.LoadSession(context.Background(), "F", day("2024-06-09"), "1", "")
	if !errors.Is(err, ErrNoDayGroup) {
		t.Errorf("expected ErrNoDayGroup, got %v", err)
	}
}

func TestService_Create_Validates(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeBatcher(), zerolog.Nop())

	err := svc.Create(context.Background(), &MasterPatient{Facility: "F", Name: "Sato"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if repo.writes != 0 {
		t.Errorf("expected no writes, got %d", repo.writes)
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeBatcher(), zerolog.Nop())
	ctx := context.Background()

	m := master("F", "Sato", "1", DayGroupMonWedFri, "1")
	if err := svc.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	m.BedLabel = "12"
	if err := svc.Update(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.Get(ctx, m.ID)
	if got.BedLabel != "12" {
		t.Errorf("expected bed 12, got %s", got.BedLabel)
	}

	if err := svc.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_List_Filters(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeBatcher(), zerolog.Nop())
	seed(t, repo,
		master("F", "A", "1", DayGroupMonWedFri, "1"),
		master("F", "B", "2", DayGroupTueThuSat, "1"),
		master("G", "C", "3", DayGroupMonWedFri, "1"),
	)

	items, total, err := svc.List(context.Background(), Filter{Facility: "F"}, pagination.Params{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 1 {
		t.Errorf("expected 1 of 2, got %d of %d", len(items), total)
	}
}

func TestService_ImportAndExport(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeBatcher(), zerolog.Nop())
	ctx := context.Background()
	seed(t, repo, master("F", "Old", "9", DayGroupMonWedFri, "1"))

	src := []*MasterPatient{
		{Name: "佐藤 花子", FuriganaName: ptr("さとう はなこ"), BedLabel: "1", DayGroup: DayGroupMonWedFri, Shift: "1"},
		{Name: "鈴木 一郎", BedLabel: "2", DayGroup: DayGroupTueThuSat, Shift: "2"},
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, src); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	res, err := svc.Import(ctx, "F", &buf, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 2 || !res.Replaced {
		t.Errorf("unexpected result %+v", res)
	}

	all, _ := repo.ListAll(ctx, Filter{Facility: "F"})
	if len(all) != 2 {
		t.Fatalf("expected old roster replaced by 2 rows, got %d", len(all))
	}

	var out bytes.Buffer
	if err := svc.Export(ctx, Filter{Facility: "F"}, &out); err != nil {
		t.Fatalf("export: %v", err)
	}
	back, rowErrs, err := ReadWorkbook(&out, "F")
	if err != nil || len(rowErrs) != 0 {
		t.Fatalf("re-read export: %v %v", err, rowErrs)
	}
	if len(back) != 2 {
		t.Errorf("expected 2 rows in export, got %d", len(back))
	}
}

func TestService_Import_RowErrorsWriteNothing(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeBatcher(), zerolog.Nop())

	buf := workbook(t, [][]interface{}{
		{"name", "bed", "day_group", "shift"},
		{"Sato", "1", "mwf", "1"},
		{"Suzuki", "2", "weekends", "1"},
	})
	res, err := svc.Import(context.Background(), "F", buf, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 3 {
		t.Errorf("expected one error on row 3, got %+v", res.Errors)
	}
	if repo.writes != 0 {
		t.Errorf("expected no writes, got %d", repo.writes)
	}
}
