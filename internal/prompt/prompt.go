// Package prompt builds the chat messages sent to the completion endpoint.
package prompt

import (
	"fmt"
	"strings"

	"logexplain/internal/models"
	"logexplain/internal/parser"
)

// SystemPrompt sets the assistant's role and the shape of its answer.
const SystemPrompt = `You are an expert Site Reliability Engineer (SRE) analyzing system logs.
Your job is to quickly explain what is happening in the logs and provide actionable insights.

For each log entry or set of related log entries, provide:
1. A clear, concise, plain-English explanation of what is happening
2. The most probable root causes if there are issues
3. The top 3 remediation actions, most important first

Keep the answer under 250 words. Focus on actionable insights that help engineers understand and resolve issues quickly.

Examples:
- For database connection timeouts: "This may be due to a network partition. Check RDS connection status in AWS Console or use psql from EC2."
- For payment failures: "Payment declined by issuer. Check with payment processor for specific decline reasons and retry logic."
- For authentication errors: "Token validation failing. Verify JWT secret rotation and check auth service logs."`

// EntryPreamble starts the user message in per-entry mode.
const EntryPreamble = "Analyze this log entry:"

// BuildBatch returns the system/user pair for a batch of lines.
// Lines are embedded verbatim; nothing is parsed here.
func BuildBatch(lines []models.LogLine) []models.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain the following %d log %s:\n\n", len(lines), plural(len(lines), "line", "lines"))
	b.WriteString(strings.Join(models.Texts(lines), "\n"))

	return []models.Message{
		{Role: models.RoleSystem, Content: SystemPrompt},
		{Role: models.RoleUser, Content: b.String()},
	}
}

// BuildEntry returns the system/user pair for a single parsed entry,
// pretty-printed with two-space indentation.
func BuildEntry(entry *models.LogEntry) ([]models.Message, error) {
	body, err := parser.Indent(entry)
	if err != nil {
		return nil, fmt.Errorf("build entry prompt: %w", err)
	}

	return []models.Message{
		{Role: models.RoleSystem, Content: SystemPrompt},
		{Role: models.RoleUser, Content: EntryPreamble + "\n" + body},
	}, nil
}

// Request wraps messages into a completion request.
func Request(model string, messages []models.Message, temperature float32, maxTokens int) *models.CompletionRequest {
	return &models.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Render formats messages for display, as printed by a dry run.
func Render(messages []models.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", m.Role, m.Content)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
