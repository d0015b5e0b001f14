package callslot

import (
	"errors"
	"testing"
	"time"
)

func TestParseSessionKey(t *testing.T) {
	tests := []struct {
		in       string
		facility string
		shift    string
	}{
		{"2024-06-03_east_1", "east", "1"},
		{"2024-06-03_north_wing_2", "north_wing", "2"},
		{"2024-12-31_F_3", "F", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, err := ParseSessionKey(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key.Facility != tt.facility {
				t.Errorf("expected facility %q, got %q", tt.facility, key.Facility)
			}
			if key.Shift != tt.shift {
				t.Errorf("expected shift %q, got %q", tt.shift, key.Shift)
			}
			if key.String() != tt.in {
				t.Errorf("expected round trip %q, got %q", tt.in, key.String())
			}
		})
	}
}

func TestParseSessionKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "2024-06-03", "2024-06-03_east", "2024-06-03_east_", "2024-13-40_east_1", "20240603_east_1_x"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseSessionKey(in); !errors.Is(err, ErrInvalidSessionKey) {
				t.Errorf("expected ErrInvalidSessionKey for %q, got %v", in, err)
			}
		})
	}
}

func TestNewSessionKey_TruncatesToDate(t *testing.T) {
	at := time.Date(2024, 6, 3, 18, 45, 0, 0, time.FixedZone("JST", 9*3600))
	key := NewSessionKey(at, "F", "2")
	if key.String() != "2024-06-03_F_2" {
		t.Errorf("expected 2024-06-03_F_2, got %s", key.String())
	}
	if key.DateString() != "2024-06-03" {
		t.Errorf("expected 2024-06-03, got %s", key.DateString())
	}
}

func TestSessionKeys(t *testing.T) {
	keys := SessionKeys(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "F", []string{"1", "2", "3"})
	if len(keys) != 3 || keys[2].String() != "2024-06-03_F_3" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"in_treatment", "being_called", "discharged"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("unexpected error for %s: %v", s, err)
		}
	}
	if _, err := ParseStatus("waiting"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSlot_SpokenName(t *testing.T) {
	furigana := "たなか はなこ"
	blank := "  "
	tests := []struct {
		name string
		slot Slot
		want string
	}{
		{"furigana preferred", Slot{Name: "田中 花子", FuriganaName: &furigana}, furigana},
		{"no furigana", Slot{Name: "田中 花子"}, "田中 花子"},
		{"blank furigana", Slot{Name: "田中 花子", FuriganaName: &blank}, "田中 花子"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.SpokenName(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
