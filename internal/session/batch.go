package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/fsm"
	"github.com/rbright/listend/internal/transcript"
)

// BatchOptions carries the per-run collaborators of a batch job.
type BatchOptions struct {
	Sink      transcript.Sink
	SessionID string
}

// batchJob is one accepted batch run waiting for its terminal event.
type batchJob struct {
	sessionID  string
	run        *batchRun
	scope      *events.Scope
	reconciler *transcript.Reconciler
	done       chan error
	finished   atomic.Bool
}

// finish records the first terminal outcome; later outcomes are dropped.
func (j *batchJob) finish(err error) {
	if !j.finished.CompareAndSwap(false, true) {
		return
	}
	j.done <- err
}

// RunBatch drives one offline transcription job and blocks until it completes, fails,
// or ctx is cancelled. Cancellation counts as a failure.
func (e *Engine) RunBatch(ctx context.Context, params BatchParams, opts BatchOptions) error {
	job, err := e.beginBatch(params, opts)
	if err != nil {
		return err
	}
	return e.driveBatch(ctx, job, params)
}

// beginBatch checks preconditions, records the job in the mode bookkeeping, and
// subscribes to its events.
func (e *Engine) beginBatch(params BatchParams, opts BatchOptions) (*batchJob, error) {
	sessionID := opts.SessionID
	if sessionID == "" {
		e.logger.Error("batch requires a session id")
		return nil, ErrMissingSessionID
	}

	e.mu.Lock()
	mode := e.sessionModeLocked(sessionID)
	if _, err := fsm.Transition(mode, fsm.EventBatchStart); err != nil {
		e.mu.Unlock()
		if mode == fsm.StateRunningBatch {
			e.logger.Warn("session is already processing in batch mode", "session_id", sessionID)
			return nil, ErrBatchRunning
		}
		e.logger.Warn("cannot start batch processing while session is live", "session_id", sessionID)
		return nil, fmt.Errorf("%w: %v", ErrSessionLive, err)
	}
	if e.live.SessionID == sessionID {
		e.mu.Unlock()
		e.logger.Warn("cannot start batch processing while session is starting", "session_id", sessionID)
		return nil, ErrSessionLive
	}
	run := &batchRun{progress: BatchProgress{}}
	e.batches[sessionID] = run
	delete(e.batchErrs, sessionID)
	e.mu.Unlock()

	job := &batchJob{
		sessionID:  sessionID,
		run:        run,
		scope:      events.NewScope(e.source),
		reconciler: transcript.NewReconciler(e.logger, opts.Sink),
		done:       make(chan error, 1),
	}
	if err := job.scope.Subscribe(events.TopicBatch, events.ForSession(sessionID, func(p events.Payload) {
		e.onBatch(job, p)
	})); err != nil {
		e.endBatch(job)
		return nil, fmt.Errorf("subscribe batch events: %w", err)
	}

	e.logger.Info("batch started", "session_id", sessionID, "file", params.FilePath)
	return job, nil
}

// driveBatch dispatches the job and waits for exactly one terminal outcome.
func (e *Engine) driveBatch(ctx context.Context, job *batchJob, params BatchParams) error {
	defer e.endBatch(job)

	if params.SessionID == "" {
		params.SessionID = job.sessionID
	}
	if err := e.backend.RunBatch(ctx, params); err != nil {
		job.finish(fmt.Errorf("%w: %w", ErrBatchFailed, err))
	}

	var err error
	select {
	case err = <-job.done:
	case <-ctx.Done():
		job.finish(fmt.Errorf("%w: %w", ErrBatchFailed, ctx.Err()))
		err = <-job.done
	}

	e.mu.Lock()
	if err != nil {
		e.batchErrs[job.sessionID] = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("batch failed", "session_id", job.sessionID, "error", err.Error())
		return err
	}
	e.logger.Info("batch complete", "session_id", job.sessionID)
	return nil
}

// endBatch releases the job's subscription and removes its bookkeeping entry.
func (e *Engine) endBatch(job *batchJob) {
	job.scope.Release()

	e.mu.Lock()
	if e.batches[job.sessionID] == job.run {
		delete(e.batches, job.sessionID)
	}
	e.mu.Unlock()
}

func (e *Engine) onBatch(job *batchJob, p events.Payload) {
	ev, ok := p.(events.Batch)
	if !ok || job.finished.Load() {
		return
	}
	ctx := context.Background()

	switch ev.Kind {
	case events.BatchStarted:
		e.setBatchProgress(job, BatchProgress{})

	case events.BatchProgress:
		if ev.Chunk != nil {
			if frame, ok := transcript.FrameFromResponse(*ev.Chunk); ok {
				frame.Final = true
				job.reconciler.HandleFrame(ctx, frame)
			}
		}
		complete := ev.Terminal()
		e.setBatchProgress(job, BatchProgress{Percentage: ev.Percentage, Complete: complete})
		if complete {
			job.finish(nil)
		}

	case events.BatchResponse:
		if ev.Result != nil {
			job.reconciler.HandleBatch(ctx, *ev.Result)
		}
		e.setBatchProgress(job, BatchProgress{Percentage: 100, Complete: true})
		job.finish(nil)

	case events.BatchFailed:
		job.finish(fmt.Errorf("%w: %s", ErrBatchFailed, ev.Error))
	}
}

func (e *Engine) setBatchProgress(job *batchJob, progress BatchProgress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if run, ok := e.batches[job.sessionID]; ok && run == job.run {
		run.progress = progress
	}
}
