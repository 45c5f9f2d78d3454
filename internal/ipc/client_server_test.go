package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "listend.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			require.Equal(t, "batch", req.Command)
			require.Equal(t, "meeting-42", req.SessionID)
			require.Equal(t, "/tmp/meeting.wav", req.FilePath)
			return Response{OK: true, State: "running_batch", Message: "ok", SessionID: req.SessionID, Progress: 12.5}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{
		Command:   "batch",
		SessionID: "meeting-42",
		FilePath:  "/tmp/meeting.wav",
	}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "running_batch", resp.State)
	require.Equal(t, "ok", resp.Message)
	require.Equal(t, "meeting-42", resp.SessionID)
	require.InDelta(t, 12.5, resp.Progress, 0.001)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "listend.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "listend.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "listend.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbe(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "listend.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "status" {
				return Response{OK: true, State: "inactive"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}

func startServer(t *testing.T, srv Server) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "listend.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	socketPath := startServer(t, Server{Handler: HandlerFunc(func(context.Context, Request) Response {
		panic("boom")
	})})

	resp, err := Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, `"status"`)
}

func TestServerReadTimeout(t *testing.T) {
	socketPath := startServer(t, Server{
		Handler:     HandlerFunc(func(context.Context, Request) Response { return Response{OK: true} }),
		ReadTimeout: 50 * time.Millisecond,
	})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}

func TestForward(t *testing.T) {
	socketPath := startServer(t, Server{Handler: HandlerFunc(func(_ context.Context, req Request) Response {
		if req.Command == "stop" {
			return Response{OK: false, State: "inactive", Error: "no session is live"}
		}
		return Response{OK: true, State: "active", SessionID: "s1"}
	})})

	resp, err := Forward(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "s1", resp.SessionID)

	resp, err = Forward(context.Background(), socketPath, Request{Command: "stop"}, 200*time.Millisecond)
	require.EqualError(t, err, "no session is live")
	require.Equal(t, "inactive", resp.State)

	_, err = Forward(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), Request{Command: "status"}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoDaemon)
}

func TestPollModeStopsWhenObserved(t *testing.T) {
	var calls atomic.Int32
	socketPath := startServer(t, Server{Handler: HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, "mode", req.Command)
		n := calls.Add(1)
		if n < 3 {
			return Response{OK: true, State: "running_batch", SessionID: req.SessionID, Progress: float64(n * 30)}
		}
		return Response{OK: true, State: "inactive", SessionID: req.SessionID}
	})})

	var seen []float64
	err := PollMode(context.Background(), socketPath, "s1", 10*time.Millisecond, func(resp Response) bool {
		seen = append(seen, resp.Progress)
		return resp.State == "inactive"
	})
	require.NoError(t, err)
	require.Equal(t, []float64{30, 60, 0}, seen)
}
