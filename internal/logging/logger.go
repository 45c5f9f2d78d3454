// Package logging configures runtime JSONL logging output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Options tune the runtime logger.
type Options struct {
	Level slog.Level
	// Mirror also receives every record, e.g. stderr while serving in the foreground.
	Mirror io.Writer
}

// New builds a JSONL logger rooted at the resolved state path.
func New(opts Options) (Runtime, error) {
	dir, err := StateDir()
	if err != nil {
		return Runtime{}, err
	}
	f, err := openStateFile(dir, "log.jsonl")
	if err != nil {
		return Runtime{}, err
	}

	var out io.Writer = f
	if opts.Mirror != nil {
		out = io.MultiWriter(f, opts.Mirror)
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})
	return Runtime{Logger: slog.New(h), Path: f.Name(), closer: f}, nil
}

// OpenEventDump opens the JSONL file that receives raw backend events when
// debug.event_dump is enabled.
func OpenEventDump() (*os.File, error) {
	dir, err := StateDir()
	if err != nil {
		return nil, err
	}
	return openStateFile(dir, "events.jsonl")
}

// LevelFromEnv reads LISTEND_LOG_LEVEL (debug, info, warn, error); info otherwise.
func LevelFromEnv() slog.Level {
	var level slog.Level
	raw := strings.TrimSpace(os.Getenv("LISTEND_LOG_LEVEL"))
	if raw == "" || level.UnmarshalText([]byte(raw)) != nil {
		return slog.LevelInfo
	}
	return level
}

// StateDir selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "listend"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "listend"), nil
}

func openStateFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}
