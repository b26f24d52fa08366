// Package batch selects the trailing window of log lines sent for analysis.
//
// Window keeps only the most recent N non-blank lines in a ring buffer, so an
// input of any size is read in one pass with O(N) memory.
package batch

import (
	"strings"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/models"
)

// initialRing bounds the buffer allocated up front; the ring grows toward its
// full size only as lines arrive.
const initialRing = 64

// Window accumulates the last Size non-blank lines offered to it.
type Window struct {
	size int
	ring []models.LogLine
	next int
	seen int
}

// NewWindow creates a window holding at most size lines.
// A size below 1 yields a window that never holds anything.
func NewWindow(size int) *Window {
	if size < 0 {
		size = 0
	}
	return &Window{size: size, ring: make([]models.LogLine, 0, min(size, initialRing))}
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.size
}

// Add offers a line to the window. Blank lines are discarded.
func (w *Window) Add(line models.LogLine) {
	if IsBlank(line.Text) {
		return
	}
	w.seen++
	if w.size == 0 {
		return
	}
	if len(w.ring) < w.size {
		w.ring = append(w.ring, line)
		return
	}
	w.ring[w.next] = line
	w.next = (w.next + 1) % w.size
}

// Seen returns how many non-blank lines were offered, including evicted ones.
func (w *Window) Seen() int {
	return w.seen
}

// Lines returns the retained lines in input order.
func (w *Window) Lines() []models.LogLine {
	lines := make([]models.LogLine, len(w.ring))
	if len(w.ring) < w.size {
		copy(lines, w.ring)
		return lines
	}
	for i := range lines {
		lines[i] = w.ring[(w.next+i)%w.size]
	}
	return lines
}

// Select returns the retained lines, or a wrapped explainerrors.ErrNoInput
// naming source when nothing qualified.
func (w *Window) Select(source string) ([]models.LogLine, error) {
	lines := w.Lines()
	if len(lines) == 0 {
		return nil, explainerrors.NewNoInputError(source)
	}
	return lines, nil
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
