// Package output renders explanations to a caller-supplied writer.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/models"
	"logexplain/internal/prompt"

	"github.com/charmbracelet/lipgloss"
)

// Format selects how results are written.
type Format string

const (
	// FormatText is human-readable output.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per result (JSON Lines).
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const (
	bannerWidth    = 60
	separatorWidth = 50
)

// Summary tallies per-entry outcomes.
type Summary struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Record counts a finished entry.
func (s *Summary) Record(r *models.EntryResult) {
	switch {
	case r.State == models.StateSkipped:
		s.Skipped++
	case r.Err != nil:
		s.Failed++
	default:
		s.Analyzed++
	}
}

// Total returns the number of entries seen.
func (s Summary) Total() int {
	return s.Analyzed + s.Failed + s.Skipped
}

type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	danger  lipgloss.Style
	success lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		label:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#565f89")),
		danger:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#9ece6a")),
	}
}

// Presenter writes results to w. The first write error is kept and reported
// by Err; later writes are skipped.
type Presenter struct {
	w      io.Writer
	format Format
	styles styles
	err    error
}

// NewPresenter creates a presenter over w. Colors are only emitted when w is
// a terminal.
func NewPresenter(w io.Writer, format Format) *Presenter {
	if format == "" {
		format = FormatText
	}
	return &Presenter{
		w:      w,
		format: format,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Err returns the first write error, if any.
func (p *Presenter) Err() error {
	return p.err
}

// Header announces the run.
func (p *Presenter) Header(source, model string) {
	if p.format == FormatJSON {
		return
	}
	p.println(p.styles.heading.Render("AI Log Explainer - Starting analysis..."))
	p.println(p.styles.label.Render("Log file:") + " " + source)
	p.println(p.styles.label.Render("Model:") + " " + model)
	p.println(p.styles.muted.Render(strings.Repeat("=", bannerWidth)))
}

// Explanation writes the batch-mode result.
func (p *Presenter) Explanation(exp *models.Explanation) {
	if p.format == FormatJSON {
		p.writeJSON(exp)
		return
	}
	p.printf("\n%s\n\n", p.styles.heading.Render(fmt.Sprintf("Explanation of %d log %s", exp.LineCount, plural(exp.LineCount))))
	p.println(exp.Text)
}

// Entry writes one per-entry result.
func (p *Presenter) Entry(r *models.EntryResult) {
	if p.format == FormatJSON {
		p.writeJSON(r)
		return
	}

	if r.State == models.StateSkipped || r.State == models.StateParseFailed {
		p.println(p.styles.danger.Render(fmt.Sprintf("Error parsing line %d:", r.LineNumber)) + " " + parseReason(r))
		return
	}

	p.printf("\n%s\n", p.styles.heading.Render(fmt.Sprintf("--- Log Entry %d ---", r.LineNumber)))
	p.println(p.styles.label.Render("Original:") + " " + string(r.Original))
	if r.Err != nil || r.State == models.StateAnalysisFailed {
		p.println(p.styles.label.Render("Analysis:") + " " + p.styles.danger.Render("Error analyzing log:") + " " + r.Error)
	} else {
		p.println(p.styles.label.Render("Analysis:") + " " + r.Explanation)
	}
	p.println(p.styles.muted.Render(strings.Repeat("-", separatorWidth)))
}

// Prompt writes the request a dry run would have sent.
func (p *Presenter) Prompt(req *models.CompletionRequest) {
	if p.format == FormatJSON {
		p.writeJSON(req)
		return
	}
	p.println(p.styles.muted.Render(fmt.Sprintf("# dry run: model=%s temperature=%.2f max_tokens=%d", req.Model, req.Temperature, req.MaxTokens)))
	p.println(prompt.Render(req.Messages))
}

// NoInput reports that nothing qualified for analysis.
func (p *Presenter) NoInput(source string) {
	if p.format == FormatJSON {
		return
	}
	p.println(p.styles.muted.Render(fmt.Sprintf("No log lines to analyze in %s.", source)))
}

// Footer closes the run. A nil summary means batch mode.
func (p *Presenter) Footer(summary *Summary) {
	if p.format == FormatJSON {
		return
	}
	if summary != nil {
		p.printf("\n%s analyzed %d, failed %d, skipped %d\n",
			p.styles.label.Render("Entries:"), summary.Analyzed, summary.Failed, summary.Skipped)
	}
	p.printf("\n%s\n", p.styles.success.Render("Analysis complete!"))
}

func (p *Presenter) writeJSON(v any) {
	if p.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		p.err = fmt.Errorf("encode result: %w", err)
		return
	}
	p.printf("%s\n", data)
}

func (p *Presenter) println(s string) {
	p.printf("%s\n", s)
}

func (p *Presenter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.err = fmt.Errorf("write output: %w", err)
	}
}

// parseReason prefers the bare decoder message over the full coded error.
func parseReason(r *models.EntryResult) string {
	var explainErr *explainerrors.ExplainError
	if errors.As(r.Err, &explainErr) {
		if reason, ok := explainErr.Context["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return r.Error
}

func plural(n int) string {
	if n == 1 {
		return "line"
	}
	return "lines"
}
