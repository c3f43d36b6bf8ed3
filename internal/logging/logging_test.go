package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToFileAndStdout(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "homectl.log")

	logger, closer := Init(logPath)
	defer closer.Close()

	logger.Info("startup", "component", "test")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "startup") {
		t.Fatalf("expected log file to contain message, got %q", string(data))
	}
}

func TestInitFallsBackWhenDirectoryUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// blocker is a file, not a directory, so MkdirAll underneath it fails.
	logPath := filepath.Join(blocker, "nested", "homectl.log")
	logger, closer := Init(logPath)
	defer closer.Close()

	if logger == nil {
		t.Fatal("expected a non-nil fallback logger")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("expected fallback closer to be a no-op, got %v", err)
	}
}

func TestNoopCloserNeverErrors(t *testing.T) {
	var c noopCloser
	if err := c.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
