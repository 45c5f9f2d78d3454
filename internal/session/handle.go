package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/listend/internal/fsm"
	"github.com/rbright/listend/internal/ipc"
	"github.com/rbright/listend/internal/transcript"
)

// Handle serves IPC commands for the daemon.
func (e *Engine) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return e.statusResponse("status")
	case "start":
		return e.handleStart(ctx, req)
	case "stop":
		if err := e.Stop(ctx); err != nil {
			return e.errorResponse(err)
		}
		return e.statusResponse("stop requested")
	case "mute", "unmute":
		if err := e.SetMuted(ctx, req.Command == "mute"); err != nil {
			return e.errorResponse(err)
		}
		return e.statusResponse(req.Command + "d")
	case "batch":
		return e.handleBatch(ctx, req)
	case "mode":
		return e.modeResponse(req.SessionID)
	default:
		live := e.Live()
		return ipc.Response{OK: false, State: string(live.Status), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (e *Engine) handleStart(ctx context.Context, req ipc.Request) ipc.Response {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return e.errorResponse(ErrMissingSessionID)
	}

	e.mu.Lock()
	cmds := e.commands
	mode := e.sessionModeLocked(sessionID)
	busy := e.live.SessionID
	e.mu.Unlock()

	switch {
	case mode == fsm.StateRunningBatch:
		return e.errorResponse(ErrBatchRunning)
	case busy != "":
		return e.errorResponse(fmt.Errorf("%w: %s", ErrSessionLive, busy))
	}

	sink, err := e.openSink(ctx, cmds, sessionID, "live")
	if err != nil {
		return e.errorResponse(err)
	}

	params := cmds.Session
	params.SessionID = sessionID
	if err := e.Start(ctx, params, StartOptions{Sink: sink}); err != nil {
		return e.errorResponse(err)
	}
	return e.statusResponse("session started")
}

// handleBatch accepts the job synchronously and drives it in the background, so the
// client can poll mode for progress.
func (e *Engine) handleBatch(ctx context.Context, req ipc.Request) ipc.Response {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return e.errorResponse(ErrMissingSessionID)
	}
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return e.errorResponse(errors.New("batch requires a file path"))
	}

	e.mu.Lock()
	cmds := e.commands
	e.mu.Unlock()

	params := cmds.Batch
	params.SessionID = sessionID
	params.FilePath = filePath

	job, err := e.beginBatch(params, BatchOptions{SessionID: sessionID})
	if err != nil {
		return e.errorResponse(err)
	}
	sink, err := e.openSink(ctx, cmds, sessionID, "batch")
	if err != nil {
		e.endBatch(job)
		return e.errorResponse(err)
	}
	job.reconciler.SetSink(sink)
	go func() {
		_ = e.driveBatch(ctx, job, params)
	}()

	return e.modeResponse(sessionID)
}

func (e *Engine) openSink(ctx context.Context, cmds Commands, sessionID, source string) (transcript.Sink, error) {
	if cmds.OpenSink == nil {
		return nil, nil
	}
	sink, err := cmds.OpenSink(ctx, sessionID, source)
	if err != nil {
		return nil, fmt.Errorf("open transcript sink: %w", err)
	}
	return sink, nil
}

func (e *Engine) statusResponse(message string) ipc.Response {
	live := e.Live()
	return ipc.Response{
		OK:        true,
		State:     string(live.Status),
		Message:   message,
		SessionID: live.SessionID,
		Seconds:   live.Seconds,
		Muted:     live.Muted,
		Device:    live.Device,
		Phase:     string(live.Phase),
		LastError: live.LastError,
	}
}

func (e *Engine) modeResponse(sessionID string) ipc.Response {
	mode := e.SessionMode(sessionID)
	resp := ipc.Response{OK: true, State: string(mode), SessionID: sessionID, Message: "mode"}
	if progress, ok := e.BatchProgress(sessionID); ok {
		resp.Progress = progress.Percentage
	} else if mode == fsm.StateInactive {
		resp.LastError = e.LastBatchError(sessionID)
	}
	return resp
}

func (e *Engine) errorResponse(err error) ipc.Response {
	live := e.Live()
	return ipc.Response{OK: false, State: string(live.Status), Error: err.Error()}
}
