package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntryState is the position of one line in the per-entry state machine.
//
//	Received -> Parsed -> Analyzed -------> Printed
//	                   \-> AnalysisFailed -/
//	Received -> ParseFailed -> Skipped
type EntryState int

const (
	StateReceived EntryState = iota
	StateParsed
	StateParseFailed
	StateAnalyzed
	StateAnalysisFailed
	StatePrinted
	StateSkipped
)

var entryStateNames = map[EntryState]string{
	StateReceived:       "received",
	StateParsed:         "parsed",
	StateParseFailed:    "parse_failed",
	StateAnalyzed:       "analyzed",
	StateAnalysisFailed: "analysis_failed",
	StatePrinted:        "printed",
	StateSkipped:        "skipped",
}

var entryTransitions = map[EntryState][]EntryState{
	StateReceived:       {StateParsed, StateParseFailed},
	StateParsed:         {StateAnalyzed, StateAnalysisFailed},
	StateParseFailed:    {StateSkipped},
	StateAnalyzed:       {StatePrinted},
	StateAnalysisFailed: {StatePrinted},
}

// String returns the snake_case state name.
func (s EntryState) String() string {
	if name, ok := entryStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s EntryState) Terminal() bool {
	return s == StatePrinted || s == StateSkipped
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s EntryState) CanTransition(next EntryState) bool {
	for _, allowed := range entryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the state by name.
func (s EntryState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EntryResult tracks one line through per-entry processing.
type EntryResult struct {
	Line        LogLine         `json:"-"`
	LineNumber  int             `json:"line_number"`
	State       EntryState      `json:"state"`
	Entry       *LogEntry       `json:"-"`
	Original    json.RawMessage `json:"entry,omitempty"`
	Level       string          `json:"level,omitempty"`
	Message     string          `json:"message,omitempty"`
	Timestamp   *time.Time      `json:"timestamp,omitempty"`
	Explanation string          `json:"analysis,omitempty"`
	Err         error           `json:"-"`
	Error       string          `json:"error,omitempty"`
}

// NewEntryResult starts a line in the Received state.
func NewEntryResult(line LogLine) *EntryResult {
	return &EntryResult{
		Line:       line,
		LineNumber: line.Number,
		State:      StateReceived,
	}
}

// SetEntry attaches the parsed entry and copies its common fields.
func (r *EntryResult) SetEntry(entry *LogEntry) {
	r.Entry = entry
	r.Original = entry.Compact
	r.Level = entry.Level
	r.Message = entry.Message
	r.Timestamp = entry.Timestamp
}

// Advance moves the result to next, rejecting backward or skipping moves.
func (r *EntryResult) Advance(next EntryState) error {
	if !r.State.CanTransition(next) {
		return fmt.Errorf("line %d: illegal transition %s -> %s", r.LineNumber, r.State, next)
	}
	r.State = next
	return nil
}

// Fail records err and advances to next.
func (r *EntryResult) Fail(next EntryState, err error) error {
	if advErr := r.Advance(next); advErr != nil {
		return advErr
	}
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return nil
}
