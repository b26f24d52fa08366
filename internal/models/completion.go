package models

// Role tags a prompt message.
type Role string

// Message roles understood by chat-completion endpoints.
const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged block of prompt text.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is everything the completion collaborator needs for one call.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// CompletionResult is the text returned for one request.
type CompletionResult struct {
	Text string `json:"text"`

	// Diagnostics reported by the endpoint; zero when unavailable.
	Model            string `json:"model,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}
