// Package ingestion provides the input adapters that produce raw log lines.
package ingestion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	explainerrors "logexplain/internal/errors"
	"logexplain/internal/logging"
	"logexplain/internal/models"

	"github.com/nxadm/tail"
	"go.uber.org/zap"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1024 * 1024 // 1MB

// LineFunc receives each line in input order. Returning an error stops reading.
type LineFunc func(line models.LogLine) error

// Source is the interface that input adapters must implement.
type Source interface {
	// Lines calls fn for every line, in order, until the input is exhausted,
	// fn returns an error, or ctx is cancelled.
	Lines(ctx context.Context, fn LineFunc) error

	// Name returns a human-readable name for this source.
	Name() string

	// Close releases any resources held by the source.
	Close() error
}

// FileSource reads logs from a file.
type FileSource struct {
	path   string
	follow bool
	logger *zap.Logger
}

// NewFileSource creates a new file source. With follow set, Lines tails the
// file from its current end and only returns when ctx is cancelled.
func NewFileSource(path string, follow bool, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		path:   path,
		follow: follow,
		logger: logger,
	}
}

// Name returns the source name.
func (f *FileSource) Name() string {
	return f.path
}

// Lines reads the file line by line.
func (f *FileSource) Lines(ctx context.Context, fn LineFunc) error {
	if err := f.check(); err != nil {
		return err
	}
	if f.follow {
		return f.readFollow(ctx, fn)
	}
	return f.readBatch(ctx, fn)
}

// check maps stat failures onto the input error taxonomy before any reading.
func (f *FileSource) check() error {
	info, err := os.Stat(f.path)
	if err != nil {
		return f.openError(err)
	}
	if info.IsDir() {
		return explainerrors.NewInputReadError(f.path, errors.New("is a directory"))
	}
	return nil
}

func (f *FileSource) openError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return explainerrors.NewInputNotFoundError(f.path)
	case errors.Is(err, fs.ErrPermission):
		return explainerrors.NewInputPermissionDeniedError(f.path)
	default:
		return explainerrors.NewInputReadError(f.path, err)
	}
}

// readBatch reads the entire file.
func (f *FileSource) readBatch(ctx context.Context, fn LineFunc) error {
	file, err := os.Open(f.path)
	if err != nil {
		return f.openError(err)
	}
	defer file.Close()

	return scanLines(ctx, file, f.path, fn)
}

// readFollow tails the file for lines appended after it was opened.
func (f *FileSource) readFollow(ctx context.Context, fn LineFunc) error {
	t, err := tail.TailFile(f.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return explainerrors.NewInputReadError(f.path, fmt.Errorf("tail: %w", err))
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	f.logger.Info("following_file", logging.Path(f.path))

	lineNum := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				f.logger.Warn("follow_read_error", zap.Error(line.Err))
				continue
			}
			lineNum++
			if err := fn(models.LogLine{Number: lineNum, Text: line.Text}); err != nil {
				return err
			}
		}
	}
}

// Close releases resources.
func (f *FileSource) Close() error {
	return nil
}

// StdinSource reads logs from standard input, or any reader standing in for it.
type StdinSource struct {
	reader io.Reader
	logger *zap.Logger
}

// NewStdinSource creates a new stdin source over r; nil means os.Stdin.
func NewStdinSource(r io.Reader, logger *zap.Logger) *StdinSource {
	if r == nil {
		r = os.Stdin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdinSource{reader: r, logger: logger}
}

// Name returns the source name.
func (s *StdinSource) Name() string {
	return "stdin"
}

// Lines reads lines from the reader until EOF.
func (s *StdinSource) Lines(ctx context.Context, fn LineFunc) error {
	s.logger.Debug("reading_from_stdin")
	return scanLines(ctx, s.reader, s.Name(), fn)
}

// Close releases resources.
func (s *StdinSource) Close() error {
	return nil
}

// scanLines feeds r to fn. Errors from fn and ctx pass through unchanged;
// scanner failures become input read errors for name.
func scanLines(ctx context.Context, r io.Reader, name string, fn LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lineNum++
		if err := fn(models.LogLine{Number: lineNum, Text: scanner.Text()}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return explainerrors.NewInputReadError(name, err)
	}
	return nil
}

// Open returns the source for path: stdin when path is empty or "-".
func Open(path string, follow bool, stdin io.Reader, logger *zap.Logger) Source {
	if path == "" || path == "-" {
		return NewStdinSource(stdin, logger)
	}
	return NewFileSource(path, follow, logger)
}
