package transcript

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Reconciler holds one run's State and forwards commits to a Sink. Apply calls are
// serialized, so one Reconciler is the single writer for its run.
type Reconciler struct {
	logger *slog.Logger

	mu    sync.Mutex
	state State
	sink  Sink
}

// NewReconciler creates a reconciler writing to sink. A nil sink discards commits.
func NewReconciler(logger *slog.Logger, sink Sink) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{logger: logger, sink: sink}
}

// SetSink replaces the commit destination.
func (r *Reconciler) SetSink(sink Sink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// HandleFrame applies one frame and commits any newly finalized words.
func (r *Reconciler) HandleFrame(ctx context.Context, f Frame) Commit {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, commit := Apply(r.state, f)
	r.state = next
	r.emit(ctx, commit)
	return commit
}

// HandleResponse decodes a live stream response and applies it. Non-result responses
// are ignored.
func (r *Reconciler) HandleResponse(ctx context.Context, resp StreamResponse) Commit {
	frame, ok := FrameFromResponse(resp)
	if !ok {
		return Commit{}
	}
	return r.HandleFrame(ctx, frame)
}

// HandleBatch applies every channel of a batch response through the final path.
func (r *Reconciler) HandleBatch(ctx context.Context, resp BatchResponse) []Commit {
	frames := FramesFromBatch(resp)
	commits := make([]Commit, 0, len(frames))
	for _, frame := range frames {
		if commit := r.HandleFrame(ctx, frame); !commit.Empty() {
			commits = append(commits, commit)
		}
	}
	return commits
}

// Flush commits every buffered partial word and resets the state.
func (r *Reconciler) Flush(ctx context.Context) Commit {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, commit := Flush(r.state)
	r.state = next
	r.emit(ctx, commit)
	return commit
}

// State returns the current reconciliation state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// emit forwards a non-empty commit. State has already advanced, so a sink failure is
// logged and not retried.
func (r *Reconciler) emit(ctx context.Context, commit Commit) {
	if commit.Empty() || r.sink == nil {
		return
	}
	if err := r.sink.Commit(ctx, commit.Words, commit.Hints); err != nil {
		r.logger.Error("commit transcript words failed",
			"error", err.Error(),
			"words", len(commit.Words),
			"hints", len(commit.Hints),
		)
	}
}
