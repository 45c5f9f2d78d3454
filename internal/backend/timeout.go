package backend

import (
	"context"
	"fmt"
	"time"
)

// withTimeout runs fn on its own goroutine and stops waiting after timeout or when
// ctx ends. fn keeps running in the background; its late result is discarded.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout <= 0 {
		return fn()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, fmt.Errorf("timed out after %s", timeout)
	}
}

// runWithTimeout is withTimeout for calls with no result.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	_, err := withTimeout(ctx, timeout, func() (struct{}, error) {
		return struct{}{}, call()
	})
	return err
}
