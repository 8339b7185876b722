package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talekeeper/storysync/internal/config"
)

func TestOpen_StderrOnly(t *testing.T) {
	out := Open(config.LogConfig{}, t.TempDir())
	defer out.Close()

	if out.file != nil {
		t.Error("no log file expected without log.file")
	}
	if out.Writer() != os.Stderr {
		t.Error("expected stderr writer")
	}
}

func TestOpen_RelativeFile(t *testing.T) {
	dir := t.TempDir()
	out := Open(config.LogConfig{File: "storysync.log", MaxSizeMB: 1, MaxBackups: 1}, dir)

	logger := out.Logger("sync")
	if logger.Prefix() != "[sync] " {
		t.Errorf("Prefix() = %q", logger.Prefix())
	}
	logger.Print("full sync complete")

	if err := out.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "storysync.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[sync] full sync complete") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestOpen_AbsoluteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "abs.log")
	out := Open(config.LogConfig{File: path}, "/nonexistent")
	out.Logger("daemon").Print("started")
	if err := out.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file at %s: %v", path, err)
	}
}
