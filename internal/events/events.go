// Package events defines the backend event payloads consumed by the session engine and
// the in-process bus that delivers them.
package events

import "github.com/rbright/listend/internal/transcript"

// Topic names one event category.
type Topic string

const (
	TopicLifecycle Topic = "lifecycle"
	TopicProgress  Topic = "progress"
	TopicError     Topic = "error"
	TopicData      Topic = "data"
	TopicBatch     Topic = "batch"
)

// Payload is implemented by every event type delivered on the bus.
type Payload interface {
	Topic() Topic
	Session() string
}

type LifecycleStatus string

const (
	LifecycleActive     LifecycleStatus = "active"
	LifecycleFinalizing LifecycleStatus = "finalizing"
	LifecycleInactive   LifecycleStatus = "inactive"
)

// Lifecycle reports a backend session status change. Error is set only on inactive.
type Lifecycle struct {
	SessionID string          `json:"session_id"`
	Status    LifecycleStatus `json:"type"`
	Error     string          `json:"error,omitempty"`
}

func (Lifecycle) Topic() Topic      { return TopicLifecycle }
func (e Lifecycle) Session() string { return e.SessionID }

type ProgressKind string

const (
	ProgressAudioInitializing ProgressKind = "audio_initializing"
	ProgressAudioReady        ProgressKind = "audio_ready"
	ProgressConnecting        ProgressKind = "connecting"
	ProgressConnected         ProgressKind = "connected"
)

// Progress reports setup progress. Device is set on audio_ready.
type Progress struct {
	SessionID string       `json:"session_id"`
	Kind      ProgressKind `json:"type"`
	Device    string       `json:"device,omitempty"`
}

func (Progress) Topic() Topic      { return TopicProgress }
func (e Progress) Session() string { return e.SessionID }

type ErrorKind string

const (
	ErrorAudio      ErrorKind = "audio_error"
	ErrorConnection ErrorKind = "connection_error"
)

// Error reports a backend failure. Fatal is only meaningful for audio errors.
type Error struct {
	SessionID string    `json:"session_id"`
	Kind      ErrorKind `json:"type"`
	Message   string    `json:"error"`
	Fatal     bool      `json:"is_fatal,omitempty"`
}

func (Error) Topic() Topic      { return TopicError }
func (e Error) Session() string { return e.SessionID }

type DataKind string

const (
	DataAudioAmplitude DataKind = "audio_amplitude"
	DataStreamResponse DataKind = "stream_response"
	DataMicMuted       DataKind = "mic_muted"
)

// Data carries amplitude samples, recognition responses and mute changes.
type Data struct {
	SessionID string                     `json:"session_id"`
	Kind      DataKind                   `json:"type"`
	Mic       float64                    `json:"mic,omitempty"`
	Speaker   float64                    `json:"speaker,omitempty"`
	Response  *transcript.StreamResponse `json:"response,omitempty"`
	Muted     bool                       `json:"value,omitempty"`
}

func (Data) Topic() Topic      { return TopicData }
func (e Data) Session() string { return e.SessionID }

type BatchKind string

const (
	BatchStarted  BatchKind = "batchStarted"
	BatchProgress BatchKind = "batchProgress"
	BatchResponse BatchKind = "batchResponse"
	BatchFailed   BatchKind = "batchFailed"
)

// Batch reports progress of an offline transcription job. Chunk and Percentage are set
// on batchProgress, Result on batchResponse, Error on batchFailed.
type Batch struct {
	SessionID  string                     `json:"session_id"`
	Kind       BatchKind                  `json:"type"`
	Chunk      *transcript.StreamResponse `json:"response,omitempty"`
	Percentage float64                    `json:"percentage,omitempty"`
	Result     *transcript.BatchResponse  `json:"result,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

func (Batch) Topic() Topic      { return TopicBatch }
func (e Batch) Session() string { return e.SessionID }

// Terminal reports whether a batchProgress chunk is the last one of its job.
func (e Batch) Terminal() bool {
	return e.Kind == BatchProgress &&
		e.Chunk != nil &&
		e.Chunk.Type == transcript.ResponseTypeResults &&
		e.Chunk.FromFinalize
}
