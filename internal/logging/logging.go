// Package logging initializes the process-wide slog logger: a text
// handler fanned out to stdout and a log file opened for append (never
// rotated) via
// io.MultiWriter, adapted from services/mape/internal/logging.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Init opens logPath (creating its parent directory) and returns a
// logger writing to both stdout and that file. If the file can't be
// opened, it falls back to stdout-only and logs the failure instead of
// refusing to start — a missing log directory shouldn't keep the
// daemon from running.
func Init(logPath string) (*slog.Logger, io.Closer) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		logger.Error("failed to create log directory, stdout only", slog.String("path", logPath), slog.Any("error", err))
		return logger, noopCloser{}
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		logger.Error("failed to open log file, stdout only", slog.String("path", logPath), slog.Any("error", err))
		return logger, noopCloser{}
	}

	mw := io.MultiWriter(os.Stdout, f)
	logger := slog.New(slog.NewTextHandler(mw, nil))
	return logger, f
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
