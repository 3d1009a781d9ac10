// Package logging configures the process logger: coloured console output plus
// an append-only run log per height range.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/archiver/internal/core/domain"
)

// Level resolves the configured level name; debug forces LevelDebug.
func Level(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitConsole installs the console-only default logger.
func InitConsole(level slog.Level) {
	stylelog.InitDefault(
		&tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
}

// LogPath returns the run log file for r inside dir.
func LogPath(dir string, r domain.HeightRange) string {
	return filepath.Join(dir, r.String()+".log")
}

// RunLog is the open run log file.
type RunLog struct {
	Path string
	file *os.File
}

// Close flushes and closes the file.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// Setup installs a default logger writing to console and to the run log for r.
func Setup(level slog.Level, dir string, r domain.HeightRange) (*RunLog, error) {
	return setup(os.Stderr, level, dir, r)
}

func setup(console io.Writer, level slog.Level, dir string, r domain.HeightRange) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	path := LogPath(dir, r)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	handler := NewFanout(
		tint.NewHandler(console, &tint.Options{Level: level, TimeFormat: time.RFC3339}),
		slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}),
	)
	slog.SetDefault(slog.New(handler))

	return &RunLog{Path: path, file: f}, nil
}

// Fanout mirrors every record to all of its handlers.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout returns a handler writing to each of handlers.
func NewFanout(handlers ...slog.Handler) *Fanout {
	return &Fanout{handlers: handlers}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: next}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: next}
}
