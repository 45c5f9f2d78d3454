package session

import (
	"context"
	"errors"

	"github.com/rbright/listend/internal/transcript"
)

// ErrBackendUnavailable indicates no recognition backend is wired.
var ErrBackendUnavailable = errors.New("recognition backend not configured")

// SessionParams configures one live capture session on the backend.
type SessionParams struct {
	SessionID     string
	Languages     []string
	Model         string
	Keywords      []string
	RecordEnabled bool
	InputDevice   string
}

// BatchParams configures one offline transcription job.
type BatchParams struct {
	SessionID string
	FilePath  string
	Languages []string
	Model     string
	Keywords  []string
}

// Backend is the command surface of the external recognition backend. Its events are
// consumed separately through an events.Source.
type Backend interface {
	StartSession(context.Context, SessionParams) error
	StopSession(context.Context) error
	SetMicMuted(context.Context, bool) error
	RunBatch(context.Context, BatchParams) error
}

// Hooks runs user commands around a live session.
type Hooks interface {
	BeforeListening(ctx context.Context, sessionID string) error
	AfterListening(ctx context.Context, sessionID string) error
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowFinalizing(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// SinkOpener creates the persistence sink for one run. source is "live" or "batch".
type SinkOpener func(ctx context.Context, sessionID string, source string) (transcript.Sink, error)

type unavailableBackend struct{}

func (unavailableBackend) StartSession(context.Context, SessionParams) error {
	return ErrBackendUnavailable
}
func (unavailableBackend) StopSession(context.Context) error       { return ErrBackendUnavailable }
func (unavailableBackend) SetMicMuted(context.Context, bool) error { return ErrBackendUnavailable }
func (unavailableBackend) RunBatch(context.Context, BatchParams) error {
	return ErrBackendUnavailable
}

type noopHooks struct{}

func (noopHooks) BeforeListening(context.Context, string) error { return nil }
func (noopHooks) AfterListening(context.Context, string) error  { return nil }

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowFinalizing(context.Context)    {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) Hide(context.Context)              {}
