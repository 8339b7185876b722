// Package logging builds the process log writer and per-component loggers.
//
// Every component takes a *log.Logger with its own prefix ("[sync] ",
// "[daemon] ", ...). Output goes to stderr and, when log.file is set, to a
// size-rotated file as well.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/talekeeper/storysync/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flags are the log flags shared by all component loggers.
const Flags = log.LstdFlags

// Output is the shared destination of component loggers.
type Output struct {
	w    io.Writer
	file *lumberjack.Logger
}

// Open returns the log destination described by cfg. A relative log.file is
// resolved against dataDir.
func Open(cfg config.LogConfig, dataDir string) *Output {
	out := &Output{w: os.Stderr}
	if cfg.File == "" {
		return out
	}

	path := cfg.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}
	out.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	out.w = io.MultiWriter(os.Stderr, out.file)
	return out
}

// Writer returns the combined destination.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Logger returns a logger for one component, e.g. Logger("sync") logs with
// the "[sync] " prefix.
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", Flags)
}

// Close releases the log file, if any.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}
