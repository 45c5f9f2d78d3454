package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// waitForReady blocks until conn is Ready. Errors name the last observed state so a
// backend that is down reads differently from one that is still connecting.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	state := conn.GetState()
	for state != connectivity.Ready {
		if state == connectivity.Shutdown {
			return errors.New("backend connection shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("backend not ready (last state %s): %w", state, context.Cause(ctx))
		}
		state = conn.GetState()
	}
	return nil
}

// Probe dials endpoint and reports whether it reaches Ready within timeout.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) error {
	conn, err := connect(ctx, endpoint, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// connect opens a client connection and blocks until it is Ready.
func connect(ctx context.Context, endpoint string, timeout time.Duration) (*grpc.ClientConn, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("backend endpoint is empty")
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial backend grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for backend grpc readiness: %w", err)
	}
	return conn, nil
}
