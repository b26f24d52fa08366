// Package parser turns a single newline-delimited JSON log line into a LogEntry.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/models"
)

// ParseEntry parses line as one JSON document.
// Any JSON value is accepted; the common fields are only read from objects.
// A line that is not valid JSON yields an EXPLAIN_2003 parse error.
func ParseEntry(line models.LogLine) (*models.LogEntry, error) {
	raw := []byte(strings.TrimSpace(line.Text))
	if len(raw) == 0 {
		return nil, explainerrors.NewInputParseError(line.Text, line.Number, "empty line")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, explainerrors.NewInputParseError(line.Text, line.Number, err.Error())
	}
	if dec.More() {
		return nil, explainerrors.NewInputParseError(line.Text, line.Number, "unexpected data after JSON value")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, explainerrors.NewInputParseError(line.Text, line.Number, err.Error())
	}

	entry := &models.LogEntry{
		Line:    line,
		Compact: json.RawMessage(compact.Bytes()),
		Value:   value,
	}

	if fields, ok := value.(map[string]any); ok {
		extractCommonFields(entry, fields)
	}

	return entry, nil
}

// Indent renders the entry with two-space indentation, keeping key order.
func Indent(entry *models.LogEntry) (string, error) {
	if entry == nil || len(entry.Compact) == 0 {
		return "", errors.New("empty entry")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, entry.Compact, "", "  "); err != nil {
		return "", fmt.Errorf("indent entry: %w", err)
	}
	return out.String(), nil
}

func extractCommonFields(entry *models.LogEntry, fields map[string]any) {
	// Extract message from common fields
	if msg, ok := fields["message"].(string); ok {
		entry.Message = msg
	} else if msg, ok := fields["msg"].(string); ok {
		entry.Message = msg
	}

	if level, ok := fields["level"].(string); ok {
		entry.Level = normalizeLevel(level)
	} else if level, ok := fields["severity"].(string); ok {
		entry.Level = normalizeLevel(level)
	} else {
		entry.Level = extractLevel(entry.Message)
	}

	for _, key := range []string{"timestamp", "time", "ts", "@timestamp"} {
		ts, ok := fields[key].(string)
		if !ok {
			continue
		}
		if t, err := parseFlexibleTimestamp(ts); err == nil {
			entry.Timestamp = &t
			break
		}
	}
}

// Helper functions

func extractLevel(message string) string {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "FATAL") || strings.Contains(upper, "CRITICAL"):
		return "FATAL"
	case strings.Contains(upper, "ERROR") || strings.Contains(upper, "FAIL"):
		return "ERROR"
	case strings.Contains(upper, "WARN"):
		return "WARN"
	case strings.Contains(upper, "DEBUG"):
		return "DEBUG"
	case strings.Contains(upper, "INFO"):
		return "INFO"
	default:
		return ""
	}
}

func normalizeLevel(level string) string {
	upper := strings.ToUpper(strings.TrimSpace(level))
	switch upper {
	case "WARNING":
		return "WARN"
	case "CRITICAL", "PANIC":
		return "FATAL"
	case "ERR":
		return "ERROR"
	default:
		return upper
	}
}

func parseFlexibleTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"2006-01-02T15:04:05.000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05,000",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
