package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// readAll collects every line of src.
func readAll(ctx context.Context, src Source) ([]models.LogLine, error) {
	var lines []models.LogLine
	err := src.Lines(ctx, func(line models.LogLine) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func TestOpen(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name     string
		path     string
		wantName string
	}{
		{"empty path is stdin", "", "stdin"},
		{"dash is stdin", "-", "stdin"},
		{"file path", "/var/log/app.jsonl", "/var/log/app.jsonl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Open(tt.path, false, strings.NewReader(""), logger)
			assert.Equal(t, tt.wantName, src.Name())
			assert.NoError(t, src.Close())
		})
	}
}

func TestFileSource_readAll(t *testing.T) {
	content := `{"level":"INFO","message":"started"}

{"level":"ERROR","message":"db timeout"}
not json at all`
	path := writeFile(t, "app.jsonl", content)

	lines, err := readAll(context.Background(), NewFileSource(path, false, zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, lines, 4)

	assert.Equal(t, models.LogLine{Number: 1, Text: `{"level":"INFO","message":"started"}`}, lines[0])
	assert.Equal(t, models.LogLine{Number: 2, Text: ""}, lines[1])
	assert.Equal(t, 4, lines[3].Number)
	assert.Equal(t, "not json at all", lines[3].Text)
}

func TestFileSource_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.jsonl", "")

	lines, err := readAll(context.Background(), NewFileSource(path, false, nil))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestFileSource_LargeLines(t *testing.T) {
	largeLine := strings.Repeat("a", 100000)
	path := writeFile(t, "large.log", "normal line\n"+largeLine+"\nanother normal line")

	lines, err := readAll(context.Background(), NewFileSource(path, false, zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Len(t, lines[1].Text, 100000)
}

func TestFileSource_NotFound(t *testing.T) {
	src := NewFileSource("/nonexistent/path/file.jsonl", false, zap.NewNop())

	_, err := readAll(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, explainerrors.ErrInputNotFound))
	assert.Equal(t, explainerrors.ErrCodeInputNotFound, explainerrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestFileSource_Directory(t *testing.T) {
	src := NewFileSource(t.TempDir(), false, zap.NewNop())

	_, err := readAll(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, explainerrors.ErrCodeInputReadFailed, explainerrors.GetErrorCode(err))
}

func TestFileSource_PermissionDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can read files regardless of mode")
	}
	path := writeFile(t, "secret.jsonl", `{"a":1}`)
	require.NoError(t, os.Chmod(path, 0o000))

	_, err := readAll(context.Background(), NewFileSource(path, false, zap.NewNop()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, explainerrors.ErrInputPermissionDenied))
}

func TestFileSource_CallbackErrorStopsReading(t *testing.T) {
	path := writeFile(t, "app.jsonl", "one\ntwo\nthree\n")
	stop := errors.New("stop")

	var seen []string
	err := NewFileSource(path, false, zap.NewNop()).Lines(context.Background(), func(line models.LogLine) error {
		seen = append(seen, line.Text)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestFileSource_ContextCancellation(t *testing.T) {
	path := writeFile(t, "many.log", strings.Repeat("line content\n", 1000))

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := NewFileSource(path, false, zap.NewNop()).Lines(ctx, func(models.LogLine) error {
		count++
		if count == 10 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, count)
}

func TestFileSource_Follow(t *testing.T) {
	path := writeFile(t, "follow.jsonl", "{\"old\":true}\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		// Give the tailer time to seek to the end before appending.
		time.Sleep(300 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("{\"new\":1}\n{\"new\":2}\n")
	}()

	var seen []models.LogLine
	err := NewFileSource(path, true, zap.NewNop()).Lines(ctx, func(line models.LogLine) error {
		seen = append(seen, line)
		if len(seen) == 2 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, seen, 2)
	assert.Equal(t, models.LogLine{Number: 1, Text: `{"new":1}`}, seen[0])
	assert.Equal(t, models.LogLine{Number: 2, Text: `{"new":2}`}, seen[1])
}

func TestFileSource_FollowMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.log"), true, zap.NewNop())

	err := src.Lines(context.Background(), func(models.LogLine) error { return nil })
	assert.True(t, errors.Is(err, explainerrors.ErrInputNotFound))
}

func TestStdinSource(t *testing.T) {
	src := NewStdinSource(strings.NewReader("{\"a\":1}\n\n{\"a\":2}\n"), zap.NewNop())
	assert.Equal(t, "stdin", src.Name())

	lines, err := readAll(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, "", `{"a":2}`}, models.Texts(lines))
	assert.NoError(t, src.Close())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("bad descriptor") }

func TestStdinSource_ReadError(t *testing.T) {
	_, err := readAll(context.Background(), NewStdinSource(failingReader{}, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, explainerrors.ErrInputReadFailed))
	assert.Contains(t, err.Error(), "bad descriptor")
}

func BenchmarkFileSource_readAll(b *testing.B) {
	tmpFile := filepath.Join(b.TempDir(), "bench.jsonl")
	content := strings.Repeat(`{"message": "benchmark log line", "level": "INFO"}`+"\n", 10000)
	if err := os.WriteFile(tmpFile, []byte(content), 0o644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := readAll(context.Background(), NewFileSource(tmpFile, false, zap.NewNop())); err != nil {
			b.Fatal(err)
		}
	}
}
