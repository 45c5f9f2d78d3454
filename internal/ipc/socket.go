package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var ErrAlreadyRunning = errors.New("listend daemon already running")

// RuntimeSocketPath returns $LISTEND_SOCKET, or listend.sock under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("LISTEND_SOCKET")); override != "" {
		return override, nil
	}
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "listend.sock"), nil
}

// AcquireOptions tunes how Acquire treats a socket path that is already bound.
type AcquireOptions struct {
	// ProbeTimeout bounds the status round trip to a possible live daemon.
	ProbeTimeout time.Duration
	// Retries is the number of extra bind attempts after a stale socket is removed.
	Retries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	// Rescue runs after a stale socket is removed.
	Rescue func(context.Context) error
}

func (o AcquireOptions) withDefaults() AcquireOptions {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 180 * time.Millisecond
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 25 * time.Millisecond
	}
	return o
}

// Acquire binds the daemon socket at path. A responsive daemon yields
// ErrAlreadyRunning. A socket left behind by a dead daemon is reclaimed.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 1; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if err := reclaim(ctx, path, opts); err != nil {
			return nil, err
		}
		if attempt > opts.Retries {
			return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
		}

		timer := time.NewTimer(time.Duration(attempt) * opts.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// reclaim removes path when nothing answers on it. An inconclusive probe leaves the
// file alone so a slow daemon is not orphaned.
func reclaim(ctx context.Context, path string, opts AcquireOptions) error {
	alive, err := Probe(ctx, path, opts.ProbeTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}

	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		return fmt.Errorf("socket path %s is a directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	if opts.Rescue != nil {
		_ = opts.Rescue(ctx)
	}
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
