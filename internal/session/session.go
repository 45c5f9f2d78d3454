// Package session owns the live capture lifecycle, the batch transcription driver, and
// the per-session mode bookkeeping shared between them.
package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/fsm"
	"github.com/rbright/listend/internal/transcript"
)

var (
	// ErrMissingSessionID rejects commands issued without a session id.
	ErrMissingSessionID = errors.New("session id is required")
	// ErrBatchRunning rejects work on a session that is processing in batch mode.
	ErrBatchRunning = errors.New("session is processing in batch mode")
	// ErrSessionLive rejects work that conflicts with a live capture session.
	ErrSessionLive = errors.New("live session in progress")
	// ErrBatchFailed wraps every batch failure, including cancellation.
	ErrBatchFailed = errors.New("batch transcription failed")
)

// LoadingPhase tracks live session setup progress.
type LoadingPhase string

const (
	PhaseIdle              LoadingPhase = "idle"
	PhaseAudioInitializing LoadingPhase = "audio_initializing"
	PhaseAudioReady        LoadingPhase = "audio_ready"
	PhaseConnecting        LoadingPhase = "connecting"
	PhaseConnected         LoadingPhase = "connected"
)

// Amplitude is the latest input level reported by the backend.
type Amplitude struct {
	Mic     float64 `json:"mic"`
	Speaker float64 `json:"speaker"`
}

// LiveSnapshot is a copy of the live session bookkeeping.
type LiveSnapshot struct {
	Status    fsm.State
	Loading   bool
	Phase     LoadingPhase
	SessionID string
	Seconds   int
	Muted     bool
	LastError string
	Device    string
	Amplitude Amplitude
}

// BatchProgress is the tracked progress of one batch job.
type BatchProgress struct {
	Percentage float64
	Complete   bool
}

// liveState is guarded by Engine.mu. scope identifies the current run: handlers and
// setup code compare against it before mutating, so a torn-down run never writes.
type liveState struct {
	LiveSnapshot

	scope      *events.Scope
	reconciler *transcript.Reconciler
	tickerStop chan struct{}
}

type batchRun struct {
	progress BatchProgress
}

// Commands configures how IPC requests become engine calls.
type Commands struct {
	Session  SessionParams
	Batch    BatchParams
	OpenSink SinkOpener
}

// Engine coordinates live sessions and batch jobs. One Engine serves a whole process.
type Engine struct {
	logger    *slog.Logger
	backend   Backend
	source    events.Source
	hooks     Hooks
	indicator Indicator

	tick time.Duration

	mu       sync.Mutex
	live     liveState
	batches  map[string]*batchRun
	commands Commands

	// batchErrs holds the failure of the last finished batch per session.
	batchErrs map[string]string
}

// NewEngine constructs an engine with safe default fallbacks.
func NewEngine(
	logger *slog.Logger,
	backend Backend,
	source events.Source,
	hooks Hooks,
	indicator Indicator,
) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if backend == nil {
		backend = unavailableBackend{}
	}
	if source == nil {
		source = events.NewBus()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}

	return &Engine{
		logger:    logger.With("component", "session"),
		backend:   backend,
		source:    source,
		hooks:     hooks,
		indicator: indicator,
		tick:      time.Second,
		live:      initialLive(),
		batches:   make(map[string]*batchRun),
		batchErrs: make(map[string]string),
	}
}

func initialLive() liveState {
	return liveState{LiveSnapshot: LiveSnapshot{
		Status: fsm.StateInactive,
		Phase:  PhaseIdle,
	}}
}

// ConfigureCommands sets the parameter templates and sink opener used by Handle.
func (e *Engine) ConfigureCommands(c Commands) {
	e.mu.Lock()
	e.commands = c
	e.mu.Unlock()
}

// SessionMode reports the mode of one session.
func (e *Engine) SessionMode(sessionID string) fsm.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionModeLocked(sessionID)
}

func (e *Engine) sessionModeLocked(sessionID string) fsm.State {
	if sessionID == "" {
		return fsm.StateInactive
	}
	if _, ok := e.batches[sessionID]; ok {
		return fsm.StateRunningBatch
	}
	if e.live.SessionID == sessionID {
		return e.live.Status
	}
	return fsm.StateInactive
}

// Live returns a snapshot of the live session bookkeeping.
func (e *Engine) Live() LiveSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.LiveSnapshot
}

// BatchProgress reports the tracked progress of a running batch job.
func (e *Engine) BatchProgress(sessionID string) (BatchProgress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.batches[sessionID]
	if !ok {
		return BatchProgress{}, false
	}
	return run.progress, true
}

// LastBatchError reports the failure of the most recently finished batch job of
// sessionID, or "" when it succeeded or none ran.
func (e *Engine) LastBatchError(sessionID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchErrs[sessionID]
}

// transitionLocked applies one live FSM event. Rejected events are logged and ignored.
func (e *Engine) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(e.live.Status, event)
	if err != nil {
		e.logger.Warn("ignored live transition", "error", err.Error(), "session_id", e.live.SessionID)
		return
	}
	e.live.Status = next
}

// startTickerLocked counts elapsed seconds while the live session is active.
func (e *Engine) startTickerLocked() {
	e.stopTickerLocked()
	stop := make(chan struct{})
	e.live.tickerStop = stop

	go func() {
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.live.tickerStop == stop {
					e.live.Seconds++
				}
				e.mu.Unlock()
			}
		}
	}()
}

func (e *Engine) stopTickerLocked() {
	if e.live.tickerStop == nil {
		return
	}
	close(e.live.tickerStop)
	e.live.tickerStop = nil
}
