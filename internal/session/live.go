package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/fsm"
	"github.com/rbright/listend/internal/transcript"
)

// StartOptions carries the per-run collaborators of a live session.
type StartOptions struct {
	Sink transcript.Sink
}

// Start begins a live session. It subscribes to backend events before asking the
// backend to start, so no event of the run is lost. On failure every live field is reset
// and the subscriptions are released.
func (e *Engine) Start(ctx context.Context, params SessionParams, opts StartOptions) error {
	sessionID := params.SessionID
	if sessionID == "" {
		e.logger.Error("start requires a session id")
		return ErrMissingSessionID
	}

	e.mu.Lock()
	if e.sessionModeLocked(sessionID) == fsm.StateRunningBatch {
		e.mu.Unlock()
		e.logger.Warn("cannot start live session while batch processing", "session_id", sessionID)
		return ErrBatchRunning
	}
	if e.live.SessionID != "" {
		current := e.live.SessionID
		e.mu.Unlock()
		e.logger.Warn("cannot start live session while another is in progress",
			"session_id", sessionID,
			"live_session_id", current,
		)
		return fmt.Errorf("%w: %s", ErrSessionLive, current)
	}

	scope := events.NewScope(e.source)
	e.live.Loading = true
	e.live.SessionID = sessionID
	e.live.scope = scope
	e.live.reconciler = transcript.NewReconciler(e.logger, opts.Sink)
	e.mu.Unlock()

	handlers := map[events.Topic]events.Handler{
		events.TopicLifecycle: func(p events.Payload) { e.onLifecycle(scope, p) },
		events.TopicProgress:  func(p events.Payload) { e.onProgress(scope, p) },
		events.TopicError:     func(p events.Payload) { e.onError(scope, p) },
		events.TopicData:      func(p events.Payload) { e.onData(scope, p) },
	}
	for _, topic := range []events.Topic{events.TopicLifecycle, events.TopicProgress, events.TopicError, events.TopicData} {
		if err := scope.Subscribe(topic, events.ForSession(sessionID, handlers[topic])); err != nil {
			return e.failSetup(ctx, scope, fmt.Errorf("subscribe %s events: %w", topic, err))
		}
	}

	if err := e.hooks.BeforeListening(ctx, sessionID); err != nil {
		return e.failSetup(ctx, scope, fmt.Errorf("before listening hook: %w", err))
	}

	if err := e.backend.StartSession(ctx, params); err != nil {
		return e.failSetup(ctx, scope, fmt.Errorf("start session: %w", err))
	}

	e.mu.Lock()
	if e.live.scope == scope {
		e.transitionLocked(fsm.EventActivate)
		if e.live.Status == fsm.StateActive {
			e.live.Loading = false
		}
	}
	e.mu.Unlock()

	e.logger.Info("live session started", "session_id", sessionID)
	return nil
}

// failSetup rolls the live state back to its initial values when scope is still the
// current run.
func (e *Engine) failSetup(ctx context.Context, scope *events.Scope, err error) error {
	e.mu.Lock()
	current := e.live.scope == scope
	if current {
		e.stopTickerLocked()
		e.live = initialLive()
		e.live.LastError = err.Error()
	}
	e.mu.Unlock()

	scope.Release()
	e.logger.Error("live session setup failed", "error", err.Error())
	if current {
		e.indicator.ShowError(ctx, "Unable to start listening")
	}
	return err
}

// Stop asks the backend to end the live session. Mode changes arrive later through
// lifecycle events, so calling Stop repeatedly or mid-setup is safe.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	sessionID := e.live.SessionID
	e.mu.Unlock()

	if err := e.backend.StopSession(ctx); err != nil {
		e.mu.Lock()
		e.live.Loading = false
		e.mu.Unlock()
		e.logger.Error("stop session failed", "error", err.Error(), "session_id", sessionID)
		return fmt.Errorf("stop session: %w", err)
	}

	if sessionID != "" {
		if err := e.hooks.AfterListening(ctx, sessionID); err != nil {
			e.logger.Error("after listening hook failed", "error", err.Error(), "session_id", sessionID)
		}
	}
	return nil
}

// SetMuted records the mute flag and forwards it to the backend.
func (e *Engine) SetMuted(ctx context.Context, muted bool) error {
	e.mu.Lock()
	e.live.Muted = muted
	e.mu.Unlock()

	if err := e.backend.SetMicMuted(ctx, muted); err != nil {
		e.logger.Error("set mic muted failed", "error", err.Error(), "muted", muted)
		return fmt.Errorf("set mic muted: %w", err)
	}
	return nil
}

func (e *Engine) onLifecycle(scope *events.Scope, p events.Payload) {
	ev, ok := p.(events.Lifecycle)
	if !ok {
		return
	}
	ctx := context.Background()

	switch ev.Status {
	case events.LifecycleActive:
		e.mu.Lock()
		if e.live.scope != scope {
			e.mu.Unlock()
			return
		}
		e.transitionLocked(fsm.EventActivate)
		e.live.Loading = false
		e.live.Phase = PhaseIdle
		e.live.Seconds = 0
		e.startTickerLocked()
		e.mu.Unlock()
		e.indicator.ShowRecording(ctx)
		e.logger.Info("live session active", "session_id", ev.SessionID)

	case events.LifecycleFinalizing:
		e.mu.Lock()
		if e.live.scope != scope {
			e.mu.Unlock()
			return
		}
		e.stopTickerLocked()
		e.transitionLocked(fsm.EventFinalize)
		e.live.Loading = true
		e.mu.Unlock()
		e.indicator.ShowFinalizing(ctx)

	case events.LifecycleInactive:
		e.mu.Lock()
		if e.live.scope != scope {
			e.mu.Unlock()
			return
		}
		reconciler := e.live.reconciler
		e.stopTickerLocked()
		seconds, muted := e.live.Seconds, e.live.Muted
		e.live = initialLive()
		e.live.Seconds = seconds
		e.live.Muted = muted
		e.live.LastError = ev.Error
		e.mu.Unlock()

		scope.Release()
		if reconciler != nil {
			flushed := reconciler.Flush(ctx)
			if !flushed.Empty() {
				e.logger.Info("flushed partial words", "session_id", ev.SessionID, "words", len(flushed.Words))
			}
		}
		e.indicator.Hide(ctx)
		if ev.Error != "" {
			e.indicator.ShowError(ctx, ev.Error)
			e.logger.Error("live session ended with error", "session_id", ev.SessionID, "error", ev.Error)
			return
		}
		e.logger.Info("live session inactive", "session_id", ev.SessionID, "seconds", seconds)
	}
}

func (e *Engine) onProgress(scope *events.Scope, p events.Payload) {
	ev, ok := p.(events.Progress)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live.scope != scope {
		return
	}

	switch ev.Kind {
	case events.ProgressAudioInitializing:
		e.live.Phase = PhaseAudioInitializing
		e.live.LastError = ""
	case events.ProgressAudioReady:
		e.live.Phase = PhaseAudioReady
		e.live.Device = ev.Device
	case events.ProgressConnecting:
		e.live.Phase = PhaseConnecting
	case events.ProgressConnected:
		e.live.Phase = PhaseConnected
	}
}

func (e *Engine) onError(scope *events.Scope, p events.Payload) {
	ev, ok := p.(events.Error)
	if !ok {
		return
	}

	e.mu.Lock()
	if e.live.scope != scope {
		e.mu.Unlock()
		return
	}
	switch ev.Kind {
	case events.ErrorAudio:
		e.live.LastError = ev.Message
		if ev.Fatal {
			e.live.Loading = false
		}
	case events.ErrorConnection:
		e.live.LastError = ev.Message
	}
	e.mu.Unlock()

	e.logger.Warn("backend reported error",
		"session_id", ev.SessionID,
		"kind", string(ev.Kind),
		"error", ev.Message,
		"fatal", ev.Fatal,
	)
}

func (e *Engine) onData(scope *events.Scope, p events.Payload) {
	ev, ok := p.(events.Data)
	if !ok {
		return
	}

	e.mu.Lock()
	if e.live.scope != scope {
		e.mu.Unlock()
		return
	}
	reconciler := e.live.reconciler
	switch ev.Kind {
	case events.DataAudioAmplitude:
		e.live.Amplitude = Amplitude{Mic: ev.Mic, Speaker: ev.Speaker}
	case events.DataMicMuted:
		e.live.Muted = ev.Muted
	}
	e.mu.Unlock()

	if ev.Kind == events.DataStreamResponse && ev.Response != nil && reconciler != nil {
		reconciler.HandleResponse(context.Background(), *ev.Response)
	}
}

// IsSetupRejection reports whether err is a precondition rejection rather than a
// backend or hook failure.
func IsSetupRejection(err error) bool {
	return errors.Is(err, ErrMissingSessionID) ||
		errors.Is(err, ErrBatchRunning) ||
		errors.Is(err, ErrSessionLive)
}
