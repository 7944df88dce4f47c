package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("Invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestJSONLogger_WritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel)

	log.Info("simulation started", Component("sim"), Int("nodes", 12))
	log.Warn("tank full", Node("T1"), SimTime(2*time.Hour))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "INFO" || entries[0].Message != "simulation started" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[0].Fields["component"] != "sim" {
		t.Errorf("Expected component field, got %v", entries[0].Fields)
	}
	if entries[1].Fields["sim_time_s"] != float64(7200) {
		t.Errorf("Expected sim_time_s 7200, got %v", entries[1].Fields["sim_time_s"])
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, WarnLevel)

	log.Debug("per-iteration detail")
	log.Info("step done")
	log.Warn("unbalanced")
	log.Error("solve failed")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected only WARN and ERROR through, got %d entries", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("Unexpected levels: %v, %v", entries[0].Level, entries[1].Level)
	}

	log.SetLevel(DebugLevel)
	log.Debug("now visible")
	if entries := decodeEntries(t, &buf); len(entries) != 3 {
		t.Errorf("Expected debug entry after SetLevel, got %d entries", len(entries))
	}
}

func TestJSONLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel).With(Component("solver"))

	log.Info("converged", Trials(7))

	entries := decodeEntries(t, &buf)
	if entries[0].Fields["component"] != "solver" {
		t.Errorf("Child logger should carry its preset fields: %v", entries[0].Fields)
	}
	if entries[0].Fields["trials"] != float64(7) {
		t.Errorf("Expected trials field, got %v", entries[0].Fields)
	}
}

func TestField_Error(t *testing.T) {
	f := Error(errors.New("boom"))
	if f.Key != "error" || f.Value != "boom" {
		t.Errorf("Unexpected error field: %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Nil error should map to nil value, got %v", f.Value)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"ERROR":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	var log Logger = NopLogger{}
	// Must be safe to call and chain.
	log.With(Component("x")).Info("ignored")
	if log.GetLevel() != ErrorLevel {
		t.Errorf("NopLogger should report ErrorLevel")
	}
}
