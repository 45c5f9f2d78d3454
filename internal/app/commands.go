package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/listend/internal/fsm"
	"github.com/rbright/listend/internal/ipc"
)

const (
	forwardTimeout = 220 * time.Millisecond
	// startTimeout covers the before-listening hook and the backend start call.
	startTimeout = 30 * time.Second
	pollInterval = 250 * time.Millisecond
)

// forward sends one request to the running daemon. Errors are already printed when
// the returned code is non-zero.
func (r Runner) forward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, int) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1
	}
	resp, err := ipc.Forward(ctx, socketPath, req, timeout)
	if err != nil {
		if errors.Is(err, ipc.ErrNoDaemon) {
			fmt.Fprintf(r.Stderr, "error: %v (run `%s serve`)\n", err, binaryName)
			return resp, 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return resp, 1
	}
	return resp, 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, fsm.StateInactive)
		return 0
	}

	resp, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	switch {
	case errors.Is(err, ipc.ErrNoDaemon):
		fmt.Fprintln(r.Stdout, fsm.StateInactive)
		return 0
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 0
}

// formatStatus renders the state plus whatever live-session detail the daemon reported.
func formatStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = string(fsm.StateInactive)
	}
	fields := []string{state}
	if resp.SessionID != "" {
		fields = append(fields,
			"session="+resp.SessionID,
			fmt.Sprintf("seconds=%d", resp.Seconds),
			fmt.Sprintf("muted=%t", resp.Muted),
		)
	}
	if resp.Phase != "" && resp.Phase != "idle" {
		fields = append(fields, "phase="+resp.Phase)
	}
	if resp.Device != "" {
		fields = append(fields, fmt.Sprintf("device=%q", resp.Device))
	}
	if resp.LastError != "" {
		fields = append(fields, fmt.Sprintf("last_error=%q", resp.LastError))
	}
	return strings.Join(fields, " ")
}

func (r Runner) commandStart(ctx context.Context, sessionID string) int {
	resp, code := r.forward(ctx, ipc.Request{Command: "start", SessionID: sessionID}, startTimeout)
	if code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 0
}

func (r Runner) commandSimple(ctx context.Context, command string) int {
	resp, code := r.forward(ctx, ipc.Request{Command: command}, startTimeout)
	if code != 0 {
		return code
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandMode(ctx context.Context, sessionID string) int {
	resp, code := r.forward(ctx, ipc.Request{Command: "mode", SessionID: sessionID}, forwardTimeout)
	if code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, formatMode(resp))
	return 0
}

func formatMode(resp ipc.Response) string {
	if resp.State == string(fsm.StateRunningBatch) {
		return fmt.Sprintf("%s %.0f%%", resp.State, resp.Progress)
	}
	return resp.State
}

// commandBatch submits the file and follows the job until the daemon reports the
// session inactive again.
func (r Runner) commandBatch(ctx context.Context, sessionID, file string) int {
	abs, err := filepath.Abs(file)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: resolve %s: %v\n", file, err)
		return 1
	}

	resp, code := r.forward(ctx, ipc.Request{Command: "batch", SessionID: sessionID, FilePath: abs}, forwardTimeout*5)
	if code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, formatMode(resp))

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	last := resp
	err = ipc.PollMode(ctx, socketPath, sessionID, pollInterval, func(next ipc.Response) bool {
		if next.State == string(fsm.StateRunningBatch) && next.Progress != last.Progress {
			fmt.Fprintln(r.Stdout, formatMode(next))
		}
		last = next
		return next.State != string(fsm.StateRunningBatch)
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if last.LastError != "" {
		fmt.Fprintf(r.Stderr, "error: %s\n", last.LastError)
		return 1
	}
	fmt.Fprintln(r.Stdout, "batch complete")
	return 0
}
