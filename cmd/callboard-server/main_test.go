package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "status"},
		"roster":  {"load", "import", "export"},
		"session": {"clear"},
		"monitor": nil,
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %q command, got %v (%v)", name, cmd, err)
		}
		for _, sub := range subs {
			c, _, err := root.Find([]string{name, sub})
			if err != nil || c.Name() != sub {
				t.Errorf("expected %s %s command", name, sub)
			}
		}
	}
}

func TestMonitorCmd_Flags(t *testing.T) {
	cmd := monitorCmd()
	for _, f := range []string{"facility", "date", "shifts"} {
		if cmd.Flags().Lookup(f) == nil {
			t.Errorf("expected --%s flag", f)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-06-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.June || d.Day() != 3 || d.Weekday() != time.Monday {
		t.Errorf("unexpected date: %v", d)
	}

	if _, err := parseDate("06/03/2024"); err == nil {
		t.Error("expected error for wrong layout")
	}

	today, err := parseDate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if y, m, dd := today.Date(); y != time.Now().Year() || m != time.Now().Month() || dd != time.Now().Day() {
		t.Errorf("expected today, got %v", today)
	}
}

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("production", &buf)
	l.Info().Str("slot_id", "abc").Msg("status changed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "status changed" || entry["slot_id"] != "abc" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNewLogger_DevelopmentWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("development", &buf)
	l.Info().Msg("ready")

	out := buf.String()
	if !strings.Contains(out, "ready") {
		t.Errorf("expected message in output, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected console output, got JSON %q", out)
	}
}
