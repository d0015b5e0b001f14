package callslot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("call slot not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidSessionKey = errors.New("invalid session key")
	ErrInvalidInput      = errors.New("invalid input")
)

// Status is the call state of one patient in one session.
type Status string

const (
	StatusInTreatment Status = "in_treatment"
	StatusBeingCalled Status = "being_called"
	StatusDischarged  Status = "discharged"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInTreatment, StatusBeingCalled, StatusDischarged:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Slot maps to the call_slot table.
type Slot struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	SessionKey       string     `db:"session_key" json:"session_key"`
	Facility         string     `db:"facility" json:"facility"`
	Name             string     `db:"name" json:"name"`
	FuriganaName     *string    `db:"furigana_name" json:"furigana_name,omitempty"`
	BedLabel         string     `db:"bed_label" json:"bed_label"`
	Status           Status     `db:"status" json:"status"`
	IsTemporary      bool       `db:"is_temporary" json:"is_temporary"`
	MasterPatientRef *uuid.UUID `db:"master_patient_ref" json:"master_patient_ref,omitempty"`
	UpdatedBy        *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// SpokenName is the name read aloud: the furigana reading when present.
func (s *Slot) SpokenName() string {
	if s.FuriganaName != nil && strings.TrimSpace(*s.FuriganaName) != "" {
		return *s.FuriganaName
	}
	return s.Name
}

const dateLayout = "2006-01-02"

// SessionKey identifies one treatment session: a facility's shift on a date.
// Its string form is "{date}_{facility}_{shift}", e.g. "2024-06-03_east_1".
type SessionKey struct {
	Date     time.Time
	Facility string
	Shift    string
}

func NewSessionKey(date time.Time, facility, shift string) SessionKey {
	y, m, d := date.Date()
	return SessionKey{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Facility: facility,
		Shift:    shift,
	}
}

func (k SessionKey) String() string {
	return k.Date.Format(dateLayout) + "_" + k.Facility + "_" + k.Shift
}

// DateString returns the session date as YYYY-MM-DD.
func (k SessionKey) DateString() string {
	return k.Date.Format(dateLayout)
}

// ParseSessionKey parses "{date}_{facility}_{shift}". The facility may itself
// contain underscores; the shift is everything after the last one.
func ParseSessionKey(s string) (SessionKey, error) {
	if len(s) < len(dateLayout)+4 || s[len(dateLayout)] != '_' {
		return SessionKey{}, fmt.Errorf("%w: %q", ErrInvalidSessionKey, s)
	}
	date, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return SessionKey{}, fmt.Errorf("%w: %q: bad date", ErrInvalidSessionKey, s)
	}

	rest := s[len(dateLayout)+1:]
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return SessionKey{}, fmt.Errorf("%w: %q: missing facility or shift", ErrInvalidSessionKey, s)
	}
	return NewSessionKey(date, rest[:i], rest[i+1:]), nil
}

// SessionKeys returns the keys of the given shifts for one facility and date.
func SessionKeys(date time.Time, facility string, shifts []string) []SessionKey {
	keys := make([]SessionKey, 0, len(shifts))
	for _, shift := range shifts {
		keys = append(keys, NewSessionKey(date, facility, shift))
	}
	return keys
}
