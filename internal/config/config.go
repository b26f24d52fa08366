// Package config resolves settings from a prioritized chain of sources:
// explicit flags, the environment, a dotenv file, a settings file, and
// built-in defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	explainerrors "logexplain/internal/errors"
)

// Setting keys shared by every source.
const (
	KeyAPIKey      = "api_key"
	KeyBaseURL     = "base_url"
	KeyModel       = "model"
	KeyLines       = "lines"
	KeyTemperature = "temperature"
	KeyMaxTokens   = "max_tokens"
	KeyTimeout     = "timeout"
	KeyFormat      = "format"
	KeyLogLevel    = "log_level"
	KeyLogFile     = "log_file"
)

// Keys lists every setting in resolution order.
var Keys = []string{
	KeyAPIKey, KeyBaseURL, KeyModel, KeyLines, KeyTemperature,
	KeyMaxTokens, KeyTimeout, KeyFormat, KeyLogLevel, KeyLogFile,
}

const (
	// CredentialEnv holds the API credential.
	CredentialEnv = "OPENAI_API_KEY"

	// EnvPrefix prefixes the environment name of every other setting.
	EnvPrefix = "LOGEXPLAIN_"

	DefaultModel       = "gpt-4"
	DefaultLines       = 50
	DefaultTemperature = 0.3
	DefaultTimeout     = 60 * time.Second

	// Output budgets applied when max_tokens is 0.
	DefaultBatchMaxTokens = 500
	DefaultEntryMaxTokens = 200
)

// Config is the resolved, validated settings for one run.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Lines       int
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Format      string
	LogLevel    string
	LogFile     string

	// Origins records which source supplied each key.
	Origins map[string]string
}

// MaxTokensFor returns the output budget for the given mode.
func (c *Config) MaxTokensFor(perEntry bool) int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	if perEntry {
		return DefaultEntryMaxTokens
	}
	return DefaultBatchMaxTokens
}

// HasCredential reports whether an API key was found.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Resolve reads every key from chain and validates the result.
// The API key may be empty; callers decide whether they need it.
func Resolve(chain Chain) (*Config, error) {
	r := resolver{chain: chain, origins: map[string]string{}}

	cfg := &Config{
		APIKey:   strings.TrimSpace(r.str(KeyAPIKey)),
		BaseURL:  strings.TrimSpace(r.str(KeyBaseURL)),
		Model:    strings.TrimSpace(r.str(KeyModel)),
		Format:   strings.ToLower(strings.TrimSpace(r.str(KeyFormat))),
		LogLevel: strings.ToLower(strings.TrimSpace(r.str(KeyLogLevel))),
		LogFile:  strings.TrimSpace(r.str(KeyLogFile)),
	}
	cfg.Lines = r.integer(KeyLines, DefaultLines)
	cfg.Temperature = float32(r.float(KeyTemperature, DefaultTemperature))
	cfg.MaxTokens = r.integer(KeyMaxTokens, 0)
	cfg.Timeout = r.duration(KeyTimeout, DefaultTimeout)
	cfg.Origins = r.origins

	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Model == "" {
		return c.invalid(KeyModel, c.Model, "model is required")
	}
	if c.Lines < 1 {
		return c.invalid(KeyLines, c.Lines, "must be at least 1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return c.invalid(KeyTemperature, c.Temperature, "must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return c.invalid(KeyMaxTokens, c.MaxTokens, "must be non-negative")
	}
	if c.Timeout <= 0 {
		return c.invalid(KeyTimeout, c.Timeout, "must be positive")
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return c.invalid(KeyFormat, c.Format, "must be text or json")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return c.invalid(KeyLogLevel, c.LogLevel, "must be debug, info, warn or error")
	}
	return nil
}

func (c *Config) invalid(key string, value any, reason string) error {
	err := explainerrors.NewConfigValidationError(key, value, reason)
	if src, ok := c.Origins[key]; ok {
		err = err.WithContext("source", src)
	}
	return err
}

// resolver collects the first conversion error while reading keys.
type resolver struct {
	chain   Chain
	origins map[string]string
	err     error
}

func (r *resolver) str(key string) string {
	v, src, ok := r.chain.Lookup(key)
	if !ok {
		return ""
	}
	r.origins[key] = src
	return v
}

func (r *resolver) integer(key string, fallback int) int {
	v := strings.TrimSpace(r.str(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "must be an integer")
		return fallback
	}
	return n
}

func (r *resolver) float(key string, fallback float64) float64 {
	v := strings.TrimSpace(r.str(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		r.fail(key, v, "must be a number")
		return fallback
	}
	return f
}

// duration accepts Go duration strings and bare numbers of seconds.
func (r *resolver) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(r.str(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	r.fail(key, v, "must be a duration such as 30s or 2m")
	return fallback
}

func (r *resolver) fail(key, value, reason string) {
	if r.err != nil {
		return
	}
	r.err = explainerrors.NewConfigValidationError(key, value, reason).
		WithContext("source", r.origins[key])
}

// String summarizes the effective settings without the credential.
func (c *Config) String() string {
	return fmt.Sprintf("model=%s lines=%d temperature=%.2f max_tokens=%d timeout=%s format=%s",
		c.Model, c.Lines, c.Temperature, c.MaxTokens, c.Timeout, c.Format)
}
