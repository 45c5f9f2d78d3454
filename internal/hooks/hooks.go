// Package hooks runs the configured commands before and after a live session.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/listend/internal/config"
	"github.com/rbright/listend/internal/session"
)

// Hook names exported to commands as LISTEND_HOOK.
const (
	BeforeListening = "before_listening"
	AfterListening  = "after_listening"
)

// Args describes one hook invocation. It is written to the command's stdin as JSON and
// mirrored into LISTEND_* environment variables.
type Args struct {
	Hook        string `json:"hook"`
	SessionID   string `json:"session_id"`
	ResourceDir string `json:"resource_dir"`
	AppName     string `json:"app_name"`
	AppMeeting  string `json:"app_meeting,omitempty"`
}

// Env returns the LISTEND_* variables for a.
func (a Args) Env() []string {
	return []string{
		"LISTEND_HOOK=" + a.Hook,
		"LISTEND_SESSION_ID=" + a.SessionID,
		"LISTEND_RESOURCE_DIR=" + a.ResourceDir,
		"LISTEND_APP=" + a.AppName,
		"LISTEND_APP_MEETING=" + a.AppMeeting,
	}
}

// Runner implements session.Hooks with configured external commands.
type Runner struct {
	cfg     config.HooksConfig
	dataDir string
	logger  *slog.Logger
}

var _ session.Hooks = (*Runner)(nil)

// NewRunner constructs a hook runner from runtime config.
func NewRunner(cfg config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		cfg:     cfg.Hooks,
		dataDir: cfg.Store.DataDir,
		logger:  logger.With("component", "hooks"),
	}
}

// BeforeListening creates the session resource directory and runs the before hook.
// A failing hook aborts session setup.
func (r *Runner) BeforeListening(ctx context.Context, sessionID string) error {
	args := r.args(BeforeListening, sessionID)
	if err := os.MkdirAll(args.ResourceDir, 0o700); err != nil {
		return fmt.Errorf("create session resource dir: %w", err)
	}
	return r.run(ctx, r.cfg.BeforeListening, args)
}

// AfterListening runs the after hook once the backend acknowledged stop.
func (r *Runner) AfterListening(ctx context.Context, sessionID string) error {
	return r.run(ctx, r.cfg.AfterListening, r.args(AfterListening, sessionID))
}

func (r *Runner) args(hook, sessionID string) Args {
	return Args{
		Hook:        hook,
		SessionID:   sessionID,
		ResourceDir: filepath.Join(r.dataDir, "sessions", sessionID),
		AppName:     r.cfg.App,
		AppMeeting:  r.cfg.AppMeeting,
	}
}

func (r *Runner) run(ctx context.Context, command config.CommandConfig, args Args) error {
	if len(command.Argv) == 0 {
		return nil
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s hook args: %w", args.Hook, err)
	}

	timeout := time.Duration(r.cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	if err := runCommandWithInput(runCtx, command.Argv, args.Env(), payload); err != nil {
		return fmt.Errorf("%s hook: %w", args.Hook, err)
	}
	r.logger.Debug("hook finished",
		"hook", args.Hook,
		"session_id", args.SessionID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}
