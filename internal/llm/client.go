// Package llm provides the chat-completion client that explains log batches.
//
// The pipeline depends only on the Completer interface. Client is the
// production implementation, speaking the OpenAI chat completions API to any
// compatible endpoint.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/logging"
	"logexplain/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer turns one completion request into generated text.
type Completer interface {
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)
}

// CompleterFunc adapts an ordinary function to the Completer interface.
type CompleterFunc func(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	return f(ctx, req)
}

// Config holds completion client configuration.
type Config struct {
	// APIKey is sent as the bearer token
	APIKey string

	// BaseURL overrides the API endpoint; empty means the OpenAI default
	BaseURL string

	// Timeout bounds each completion call
	Timeout time.Duration

	// HTTPClient is the transport; nil uses a default client
	HTTPClient *http.Client

	// Logger is the logger instance
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
		Logger:  logging.L(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return explainerrors.NewConfigValidationError("APIKey", "", "api key is required")
	}
	if c.Timeout <= 0 {
		return explainerrors.NewConfigValidationError("Timeout", c.Timeout, "must be positive")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return explainerrors.NewConfigValidationError("BaseURL", c.BaseURL, "must be an absolute URL")
		}
	}
	return nil
}

// Client is a Completer backed by an OpenAI-compatible chat completions API.
type Client struct {
	api     *openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new completion client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "llm")),
	}, nil
}

// Complete sends one chat completion request. Failures come back as coded
// completion errors; nothing is retried.
func (c *Client) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	c.logger.Debug("completion_requested",
		logging.Model(req.Model),
		logging.Count(len(messages)),
		zap.Int("max_tokens", req.MaxTokens),
	)

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		code := classifyError(err)
		c.logger.Debug("completion_failed",
			logging.Model(req.Model),
			logging.ErrorCode(string(code)),
			logging.Duration(time.Since(start)),
			zap.Error(err),
		)
		return nil, explainerrors.NewCompletionError(code, req.Model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, explainerrors.NewCompletionError(
			explainerrors.ErrCodeCompletionMalformed, req.Model, errors.New("response contained no choices"))
	}

	choice := resp.Choices[0]
	result := &models.CompletionResult{
		Text:             strings.TrimSpace(choice.Message.Content),
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	c.logger.Debug("completion_succeeded",
		logging.Model(req.Model),
		logging.Duration(time.Since(start)),
		logging.Tokens(result.PromptTokens, result.CompletionTokens),
		zap.String("finish_reason", result.FinishReason),
	)

	return result, nil
}

// classifyError maps a transport or API failure onto a completion error code.
func classifyError(err error) explainerrors.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return explainerrors.ErrCodeCompletionTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return codeForStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return codeForStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return explainerrors.ErrCodeCompletionTimeout
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return explainerrors.ErrCodeCompletionConnection
	}

	return explainerrors.ErrCodeCompletionFailed
}

func codeForStatus(status int) explainerrors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return explainerrors.ErrCodeCompletionAuth
	case status == http.StatusTooManyRequests:
		return explainerrors.ErrCodeCompletionRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return explainerrors.ErrCodeCompletionTimeout
	default:
		return explainerrors.ErrCodeCompletionFailed
	}
}
