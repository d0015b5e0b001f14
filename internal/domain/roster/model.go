package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("master patient not found")
	ErrNoDayGroup   = errors.New("no dialysis day group on this date")
	ErrInvalidInput = errors.New("invalid input")
)

// DayGroup is the weekly treatment pattern of a patient.
type DayGroup string

const (
	DayGroupMonWedFri DayGroup = "mon_wed_fri"
	DayGroupTueThuSat DayGroup = "tue_thu_sat"
)

func (g DayGroup) Valid() bool {
	return g == DayGroupMonWedFri || g == DayGroupTueThuSat
}

// ParseDayGroup accepts the canonical value or the short forms used on
// printed rosters ("月水金", "火木土", "mwf", "tts").
func ParseDayGroup(s string) (DayGroup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mon_wed_fri", "mwf", "月水金":
		return DayGroupMonWedFri, nil
	case "tue_thu_sat", "tts", "火木土":
		return DayGroupTueThuSat, nil
	}
	return "", fmt.Errorf("%w: unknown day group %q", ErrInvalidInput, s)
}

// Label is the short Japanese form printed on exported rosters.
func (g DayGroup) Label() string {
	switch g {
	case DayGroupMonWedFri:
		return "月水金"
	case DayGroupTueThuSat:
		return "火木土"
	}
	return string(g)
}

// DayGroupFor returns the group treated on date. Sunday has none.
func DayGroupFor(date time.Time) (DayGroup, error) {
	switch date.Weekday() {
	case time.Monday, time.Wednesday, time.Friday:
		return DayGroupMonWedFri, nil
	case time.Tuesday, time.Thursday, time.Saturday:
		return DayGroupTueThuSat, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoDayGroup, date.Format("2006-01-02 (Mon)"))
}

// MasterPatient maps to the master_patient table.
type MasterPatient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Facility     string    `db:"facility" json:"facility"`
	Name         string    `db:"name" json:"name"`
	FuriganaName *string   `db:"furigana_name" json:"furigana_name,omitempty"`
	BedLabel     string    `db:"bed_label" json:"bed_label"`
	DayGroup     DayGroup  `db:"day_group" json:"day_group"`
	Shift        string    `db:"shift" json:"shift"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (m *MasterPatient) validate() error {
	var missing []string
	if strings.TrimSpace(m.Facility) == "" {
		missing = append(missing, "facility")
	}
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.BedLabel) == "" {
		missing = append(missing, "bed_label")
	}
	if strings.TrimSpace(m.Shift) == "" {
		missing = append(missing, "shift")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if strings.Contains(m.Shift, "_") {
		return fmt.Errorf("%w: shift must not contain '_'", ErrInvalidInput)
	}
	if !m.DayGroup.Valid() {
		return fmt.Errorf("%w: unknown day group %q", ErrInvalidInput, m.DayGroup)
	}
	return nil
}

// Filter narrows a roster listing. Empty fields match everything.
type Filter struct {
	Facility string
	DayGroup DayGroup
	Shift    string
}
