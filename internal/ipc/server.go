package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers one JSON request line per connection.
type Server struct {
	Handler Handler
	Logger  *slog.Logger
	// ReadTimeout bounds how long a client may take to send its request line.
	ReadTimeout time.Duration
}

// Serve accepts unix-socket clients with default server settings.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return Server{Handler: handler}.Serve(ctx, listener)
}

// Serve accepts unix-socket clients until context cancellation or listener close.
// Handlers receive ctx, so work they start in the background outlives the connection.
func (s Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 2 * time.Second
	}

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			s.serveConn(ctx, c)
		}(conn)
	}
}

func (s Server) serveConn(ctx context.Context, c net.Conn) {
	enc := json.NewEncoder(c)
	_ = c.SetReadDeadline(time.Now().Add(s.ReadTimeout))

	line, err := bufio.NewReader(c).ReadBytes('\n')
	if err != nil {
		_ = enc.Encode(Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = enc.Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	started := time.Now()
	resp := s.handle(ctx, req)
	s.Logger.Debug("ipc request",
		"command", req.Command,
		"session_id", req.SessionID,
		"ok", resp.OK,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	_ = enc.Encode(resp)
}

func (s Server) handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("ipc handler panic", "command", req.Command, "panic", fmt.Sprint(r))
			resp = Response{OK: false, Error: fmt.Sprintf("internal error handling %q", req.Command)}
		}
	}()
	return s.Handler.Handle(ctx, req)
}
