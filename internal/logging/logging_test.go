// Package logging_test provides tests for the logexplain logging package.
package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logexplain/internal/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()

	if cfg.Level != "warn" {
		t.Errorf("expected level 'warn', got %q", cfg.Level)
	}
	if cfg.LogFile != "logexplain.jsonl" {
		t.Errorf("expected log file 'logexplain.jsonl', got %q", cfg.LogFile)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected max size 10MB, got %d", cfg.MaxSizeMB)
	}
	if !cfg.EnableConsole {
		t.Error("console should be enabled by default")
	}
	if cfg.EnableFile {
		t.Error("file should be disabled by default")
	}
}

func TestForFile(t *testing.T) {
	cfg := logging.DefaultConfig().ForFile("/var/log/logexplain/run.jsonl")
	if !cfg.EnableFile {
		t.Fatal("ForFile should enable the file core")
	}
	if cfg.LogDir != "/var/log/logexplain" || cfg.LogFile != "run.jsonl" {
		t.Errorf("unexpected split: dir=%q file=%q", cfg.LogDir, cfg.LogFile)
	}

	cfg = logging.DefaultConfig().ForFile("")
	if cfg.EnableFile {
		t.Error("empty path should disable the file core")
	}
}

func TestLoggerOutputsJSONL(t *testing.T) {
	t.Cleanup(func() { _ = logging.Close() })

	tmpDir := t.TempDir()
	cfg := &logging.Config{
		Level:         "info",
		LogDir:        tmpDir,
		LogFile:       "jsonl-test.jsonl",
		MaxSizeMB:     1,
		MaxBackups:    1,
		EnableConsole: false,
		EnableFile:    true,
	}

	if err := logging.Setup(cfg); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logging.L().Info("test_event", logging.Count(42), logging.Path("/test/path"), logging.Tokens(10, 20))
	_ = logging.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "jsonl-test.jsonl"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("no log lines written")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not valid JSON: %v\nLine: %s", err, lines[0])
	}
	for _, key := range []string{"timestamp", "level", "msg", "service", "count", "tokens"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("log entry missing %q field", key)
		}
	}
	if entry["service"] != logging.ServiceName {
		t.Errorf("unexpected service: %v", entry["service"])
	}
}

func TestConsoleOutputGoesToConfiguredWriter(t *testing.T) {
	t.Cleanup(func() { _ = logging.Close() })

	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Output = &buf

	if err := logging.Setup(cfg); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logging.L().Info("hidden_at_warn")
	logging.L().Warn("entry_parse_failed", logging.LineNumber(3))
	_ = logging.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden_at_warn") {
		t.Error("info entries should be filtered at the default warn level")
	}
	if !strings.Contains(out, "entry_parse_failed") {
		t.Errorf("warn entry missing from console output: %q", out)
	}
}

func TestLoggerWithContext(t *testing.T) {
	t.Cleanup(func() { _ = logging.Close() })

	tmpDir := t.TempDir()
	cfg := &logging.Config{
		Level:      "debug",
		LogDir:     tmpDir,
		LogFile:    "context-test.jsonl",
		MaxSizeMB:  1,
		MaxBackups: 1,
		EnableFile: true,
	}

	if err := logging.Setup(cfg); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logging.WithContext("run-123", "batch").Info("explain_starting")
	_ = logging.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "context-test.jsonl"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}

	if entry["run_id"] != "run-123" {
		t.Errorf("expected run_id 'run-123', got %v", entry["run_id"])
	}
	if entry["operation"] != "batch" {
		t.Errorf("expected operation 'batch', got %v", entry["operation"])
	}
}

func TestLogLevels(t *testing.T) {
	t.Cleanup(func() { _ = logging.Close() })

	tmpDir := t.TempDir()

	testCases := []struct {
		level    string
		logFunc  func()
		expected bool
	}{
		{level: "debug", logFunc: func() { logging.L().Debug("debug message") }, expected: true},
		{level: "info", logFunc: func() { logging.L().Debug("debug message") }, expected: false},
		{level: "warn", logFunc: func() { logging.L().Info("info message") }, expected: false},
		{level: "error", logFunc: func() { logging.L().Warn("warn message") }, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			logFile := tc.level + "-test.jsonl"
			cfg := &logging.Config{
				Level:      tc.level,
				LogDir:     tmpDir,
				LogFile:    logFile,
				MaxSizeMB:  1,
				MaxBackups: 1,
				EnableFile: true,
			}

			if err := logging.Setup(cfg); err != nil {
				t.Fatalf("Setup failed: %v", err)
			}

			tc.logFunc()
			_ = logging.Sync()

			content, err := os.ReadFile(filepath.Join(tmpDir, logFile))
			if err != nil && !os.IsNotExist(err) {
				t.Fatalf("failed to read log file: %v", err)
			}

			hasContent := len(strings.TrimSpace(string(content))) > 0
			if hasContent != tc.expected {
				t.Errorf("at level %s, expected content=%v, got content=%v", tc.level, tc.expected, hasContent)
			}
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := logging.DefaultConfig().ForFile(filepath.Join(tmpDir, "nested", "close.jsonl"))
	cfg.EnableConsole = false

	if err := logging.Setup(cfg); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logging.L().Warn("before_close")

	if err := logging.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := logging.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "nested")); os.IsNotExist(err) {
		t.Error("nested log directory was not created")
	}
}
