// Package models defines the data structures passed between pipeline stages.
package models

import (
	"encoding/json"
	"time"
)

// LogLine is one raw input line with its 1-based position in the input.
// The text is opaque; it is usually, but not necessarily, a JSON object.
type LogLine struct {
	Number int    `json:"line_number"`
	Text   string `json:"text"`
}

// Texts returns the raw text of each line, in order.
func Texts(lines []LogLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// LogEntry is a line that parsed as JSON in per-entry mode.
type LogEntry struct {
	Line LogLine `json:"-"`

	// Compact is the entry re-serialized without insignificant whitespace,
	// preserving the original key order.
	Compact json.RawMessage `json:"entry"`

	// Value is the decoded document.
	Value any `json:"-"`

	// Common fields, populated when the document is an object that has them.
	Message   string     `json:"-"`
	Level     string     `json:"-"`
	Timestamp *time.Time `json:"-"`
}

// Explanation is the batch-mode outcome of one completion.
type Explanation struct {
	// Source names where the lines came from (file path or stdin)
	Source string `json:"source"`

	// LineCount is the number of lines that were sent for analysis
	LineCount int `json:"line_count"`

	// Model is the model that produced the text
	Model string `json:"model"`

	// Text is the model's explanation
	Text string `json:"explanation"`

	// GeneratedAt is when this explanation was created
	GeneratedAt time.Time `json:"generated_at"`
}
