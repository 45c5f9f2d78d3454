package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config controls the backend connection.
type Config struct {
	Endpoint    string
	Provider    string
	DialTimeout time.Duration
	CallTimeout time.Duration
	// EventDump receives every raw event envelope as one JSON line when set.
	EventDump io.Writer
}

// Client implements session.Backend over gRPC and republishes backend events.
type Client struct {
	logger    *slog.Logger
	conn      *grpc.ClientConn
	provider  string
	timeout   time.Duration
	publisher events.Publisher

	cancelEvents context.CancelFunc
	recvDone     chan struct{}

	mu        sync.Mutex
	recvErr   error
	eventDump io.Writer
}

var _ session.Backend = (*Client)(nil)

// Dial connects to the backend, waits for readiness, and starts forwarding its event
// stream to publisher.
func Dial(ctx context.Context, logger *slog.Logger, cfg Config, publisher events.Publisher) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if publisher == nil {
		return nil, errors.New("backend event publisher is nil")
	}

	conn, err := connect(ctx, cfg.Endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	eventsCtx, cancelEvents := context.WithCancel(context.Background())
	stream, err := withTimeout(ctx, cfg.DialTimeout, func() (grpc.ClientStream, error) {
		return openEvents(eventsCtx, conn)
	})
	if err != nil {
		cancelEvents()
		_ = conn.Close()
		return nil, fmt.Errorf("open backend event stream: %w", err)
	}

	c := &Client{
		logger:       logger.With("component", "backend"),
		conn:         conn,
		provider:     strings.TrimSpace(cfg.Provider),
		timeout:      cfg.CallTimeout,
		publisher:    publisher,
		cancelEvents: cancelEvents,
		recvDone:     make(chan struct{}),
		eventDump:    cfg.EventDump,
	}
	go c.recvLoop(stream)
	return c, nil
}

func openEvents(ctx context.Context, conn *grpc.ClientConn) (grpc.ClientStream, error) {
	stream, err := conn.NewStream(ctx, &listenerServiceDesc.Streams[0], methodEvents)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("send events request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close events request: %w", err)
	}
	return stream, nil
}

// recvLoop decodes and publishes events until the stream closes or fails.
func (c *Client) recvLoop(stream grpc.ClientStream) {
	defer close(c.recvDone)

	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if err == nil {
			c.recordEvent(msg)
			continue
		}
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			c.logger.Info("backend event stream closed")
			return
		}

		c.mu.Lock()
		c.recvErr = err
		c.mu.Unlock()
		c.logger.Error("backend event stream failed", "error", err.Error())
		return
	}
}

func (c *Client) recordEvent(msg *structpb.Struct) {
	if sink := c.eventDump; sink != nil {
		b, err := protojson.Marshal(msg)
		if err == nil {
			_, _ = sink.Write(append(b, '\n'))
		}
	}

	event, err := DecodeEvent(msg)
	if err != nil {
		c.logger.Warn("dropped undecodable backend event", "error", err.Error())
		return
	}
	c.publisher.Publish(event)
}

// StartSession asks the backend to begin a live session.
func (c *Client) StartSession(ctx context.Context, params session.SessionParams) error {
	req, err := sessionRequest(params)
	if err != nil {
		return fmt.Errorf("build start request: %w", err)
	}
	return c.invoke(ctx, methodStartSession, req)
}

// StopSession asks the backend to end the live session.
func (c *Client) StopSession(ctx context.Context) error {
	return c.invoke(ctx, methodStopSession, &structpb.Struct{})
}

// SetMicMuted toggles microphone capture on the backend.
func (c *Client) SetMicMuted(ctx context.Context, muted bool) error {
	req, err := structpb.NewStruct(map[string]any{"value": muted})
	if err != nil {
		return fmt.Errorf("build mute request: %w", err)
	}
	return c.invoke(ctx, methodSetMicMuted, req)
}

// RunBatch dispatches an offline transcription job. Results arrive as batch events.
func (c *Client) RunBatch(ctx context.Context, params session.BatchParams) error {
	req, err := batchRequest(params, c.provider)
	if err != nil {
		return fmt.Errorf("build batch request: %w", err)
	}
	return c.invoke(ctx, methodRunBatch, req)
}

func (c *Client) invoke(ctx context.Context, method string, req proto.Message) error {
	c.mu.Lock()
	recvErr := c.recvErr
	c.mu.Unlock()
	if recvErr != nil {
		return fmt.Errorf("backend event stream failed: %w", recvErr)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return runWithTimeout(callCtx, c.timeout, func() error {
		return c.conn.Invoke(callCtx, method, req, new(emptypb.Empty))
	})
}

// Err reports the event stream failure, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvErr
}

// Done is closed when the event stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.recvDone
}

// Close stops the event stream and closes the connection.
func (c *Client) Close() error {
	c.cancelEvents()
	err := c.conn.Close()
	<-c.recvDone
	return err
}
