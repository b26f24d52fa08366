package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTexts(t *testing.T) {
	lines := []LogLine{
		{Number: 1, Text: `{"a":1}`},
		{Number: 3, Text: `{"a":2}`},
	}

	got := Texts(lines)
	if len(got) != 2 || got[0] != `{"a":1}` || got[1] != `{"a":2}` {
		t.Errorf("Texts() = %v", got)
	}

	if got := Texts(nil); len(got) != 0 {
		t.Errorf("Texts(nil) = %v, want empty", got)
	}
}

func TestExplanation_JSON(t *testing.T) {
	exp := &Explanation{
		Source:      "/var/log/app.jsonl",
		LineCount:   12,
		Model:       "gpt-4",
		Text:        "The database is refusing connections.",
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(exp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["explanation"] != exp.Text {
		t.Errorf("explanation = %v, want %v", decoded["explanation"], exp.Text)
	}
	if decoded["line_count"] != float64(12) {
		t.Errorf("line_count = %v, want 12", decoded["line_count"])
	}
	if decoded["generated_at"] != "2024-01-15T10:30:00Z" {
		t.Errorf("generated_at = %v", decoded["generated_at"])
	}
}

func TestEntryState_Transitions(t *testing.T) {
	tests := []struct {
		from, to EntryState
		want     bool
	}{
		{StateReceived, StateParsed, true},
		{StateReceived, StateParseFailed, true},
		{StateParsed, StateAnalyzed, true},
		{StateParsed, StateAnalysisFailed, true},
		{StateAnalyzed, StatePrinted, true},
		{StateAnalysisFailed, StatePrinted, true},
		{StateParseFailed, StateSkipped, true},

		{StateParsed, StateReceived, false},
		{StatePrinted, StateAnalyzed, false},
		{StateSkipped, StateReceived, false},
		{StateReceived, StatePrinted, false},
		{StateParseFailed, StatePrinted, false},
		{StateAnalyzed, StateAnalyzed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryState_NeverMovesBackward(t *testing.T) {
	// Every legal edge goes to a state declared later in the enum.
	for from, nexts := range entryTransitions {
		for _, to := range nexts {
			if to <= from {
				t.Errorf("edge %s -> %s moves backward", from, to)
			}
		}
	}
}

func TestEntryState_Terminal(t *testing.T) {
	for s := StateReceived; s <= StateSkipped; s++ {
		want := s == StatePrinted || s == StateSkipped
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
		if s.Terminal() && len(entryTransitions[s]) != 0 {
			t.Errorf("terminal state %s has outgoing edges", s)
		}
	}
}

func TestEntryResult_Lifecycle(t *testing.T) {
	t.Run("parse failure path", func(t *testing.T) {
		r := NewEntryResult(LogLine{Number: 7, Text: "not json"})
		if r.State != StateReceived {
			t.Fatalf("initial state = %s", r.State)
		}
		if err := r.Fail(StateParseFailed, errors.New("invalid character 'o'")); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if err := r.Advance(StateSkipped); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		if r.Error != "invalid character 'o'" {
			t.Errorf("Error = %q", r.Error)
		}
		if err := r.Advance(StateParsed); err == nil {
			t.Error("Advance() from a terminal state should fail")
		}
	})

	t.Run("success path", func(t *testing.T) {
		r := NewEntryResult(LogLine{Number: 1, Text: `{"a":1}`})
		for _, s := range []EntryState{StateParsed, StateAnalyzed, StatePrinted} {
			if err := r.Advance(s); err != nil {
				t.Fatalf("Advance(%s) error = %v", s, err)
			}
		}
		if !r.State.Terminal() {
			t.Error("result should end terminal")
		}
	})
}

func TestEntryResult_JSON(t *testing.T) {
	r := NewEntryResult(LogLine{Number: 4, Text: `{"a":1}`})
	r.State = StatePrinted
	r.Original = json.RawMessage(`{"a":1}`)
	r.Explanation = "All good."

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"line_number":4,"state":"printed","entry":{"a":1},"analysis":"All good."}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestEntryResult_SetEntry(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	r := NewEntryResult(LogLine{Number: 2, Text: `{"z":1,"level":"error"}`})
	r.SetEntry(&LogEntry{
		Compact:   json.RawMessage(`{"z":1,"level":"error"}`),
		Message:   "db down",
		Level:     "ERROR",
		Timestamp: &ts,
	})
	r.State = StatePrinted

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"line_number":2,"state":"printed","entry":{"z":1,"level":"error"},"level":"ERROR","message":"db down","timestamp":"2024-01-15T10:30:00Z"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
