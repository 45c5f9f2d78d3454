package backend

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/session"
	"github.com/rbright/listend/internal/transcript"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type testListenerServer struct {
	UnimplementedListenerServer

	events   []events.Payload
	startErr error

	mu       sync.Mutex
	requests map[string]*structpb.Struct
}

func (s *testListenerServer) record(method string, req *structpb.Struct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requests == nil {
		s.requests = make(map[string]*structpb.Struct)
	}
	s.requests[method] = req
}

func (s *testListenerServer) request(method string) *structpb.Struct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

func (s *testListenerServer) StartSession(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	s.record("StartSession", req)
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &emptypb.Empty{}, nil
}

func (s *testListenerServer) StopSession(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	s.record("StopSession", req)
	return &emptypb.Empty{}, nil
}

func (s *testListenerServer) SetMicMuted(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	s.record("SetMicMuted", req)
	return &emptypb.Empty{}, nil
}

func (s *testListenerServer) RunBatch(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	s.record("RunBatch", req)
	return &emptypb.Empty{}, nil
}

func (s *testListenerServer) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	for _, event := range s.events {
		msg, err := EncodeEvent(event)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	<-stream.Context().Done()
	return nil
}

func startTestListenerServer(t *testing.T, srv ListenerServer) (string, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	RegisterListenerServer(grpcServer, srv)

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	shutdown := func() {
		grpcServer.Stop()
		_ = lis.Close()
	}

	return lis.Addr().String(), shutdown
}

type collector struct {
	mu     sync.Mutex
	events []events.Payload
}

func (c *collector) handle(p events.Payload) {
	c.mu.Lock()
	c.events = append(c.events, p)
	c.mu.Unlock()
}

func (c *collector) snapshot() []events.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Payload(nil), c.events...)
}

func intPtr(v int) *int { return &v }

func TestDialForwardsEventsToBus(t *testing.T) {
	chunk := &transcript.StreamResponse{
		Type:         transcript.ResponseTypeResults,
		IsFinal:      true,
		ChannelIndex: []int{1},
		Channel: transcript.StreamChannel{Alternatives: []transcript.StreamAlternative{{
			Transcript: "hello",
			Words:      []transcript.StreamWord{{Word: "hello", PunctuatedWord: "Hello", Start: 0.25, End: 0.75, Speaker: intPtr(2)}},
		}}},
	}
	server := &testListenerServer{events: []events.Payload{
		events.Lifecycle{SessionID: "s1", Status: events.LifecycleActive},
		events.Progress{SessionID: "s1", Kind: events.ProgressAudioReady, Device: "USB Mic"},
		events.Error{SessionID: "s1", Kind: events.ErrorAudio, Message: "xrun", Fatal: true},
		events.Data{SessionID: "s1", Kind: events.DataStreamResponse, Response: chunk},
		events.Batch{SessionID: "s2", Kind: events.BatchProgress, Percentage: 50, Chunk: chunk},
		events.Batch{SessionID: "s2", Kind: events.BatchResponse, Result: &transcript.BatchResponse{
			Results: transcript.BatchResults{Channels: []transcript.StreamChannel{chunk.Channel}},
		}},
	}}
	endpoint, shutdown := startTestListenerServer(t, server)
	defer shutdown()

	bus := events.NewBus()
	got := &collector{}
	for _, topic := range []events.Topic{events.TopicLifecycle, events.TopicProgress, events.TopicError, events.TopicData, events.TopicBatch} {
		bus.Subscribe(topic, got.handle)
	}

	var dump bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, nil, Config{Endpoint: endpoint, DialTimeout: 2 * time.Second, EventDump: &dump}, bus)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return len(got.snapshot()) == 6 }, 3*time.Second, 10*time.Millisecond)
	received := got.snapshot()

	require.Equal(t, events.Lifecycle{SessionID: "s1", Status: events.LifecycleActive}, received[0])
	require.Equal(t, events.Progress{SessionID: "s1", Kind: events.ProgressAudioReady, Device: "USB Mic"}, received[1])
	require.Equal(t, events.Error{SessionID: "s1", Kind: events.ErrorAudio, Message: "xrun", Fatal: true}, received[2])

	data := received[3].(events.Data)
	require.NotNil(t, data.Response)
	frame, ok := transcript.FrameFromResponse(*data.Response)
	require.True(t, ok)
	require.Equal(t, 1, frame.Channel)
	require.Equal(t, []transcript.Word{{Text: " Hello", StartMs: 250, EndMs: 750, Channel: 1}}, frame.Words)
	require.Equal(t, 2, frame.Hints[0].Data.SpeakerIndex)

	progress := received[4].(events.Batch)
	require.Equal(t, events.BatchProgress, progress.Kind)
	require.InDelta(t, 50, progress.Percentage, 0.001)
	require.NotNil(t, progress.Chunk)
	require.Nil(t, progress.Result)

	result := received[5].(events.Batch)
	require.Equal(t, events.BatchResponse, result.Kind)
	require.NotNil(t, result.Result)
	require.Len(t, result.Result.Results.Channels, 1)

	require.Contains(t, dump.String(), `"topic":"lifecycle"`)
	require.NoError(t, client.Err())
}

func TestClientCommandsEncodeRequests(t *testing.T) {
	server := &testListenerServer{}
	endpoint, shutdown := startTestListenerServer(t, server)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, nil, Config{Endpoint: endpoint, Provider: "deepgram"}, events.NewBus())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.StartSession(ctx, session.SessionParams{
		SessionID:     "s1",
		Languages:     []string{"en", "de"},
		Model:         "nova-3",
		Keywords:      []string{"listend"},
		RecordEnabled: true,
	}))
	start := server.request("StartSession").AsMap()
	require.Equal(t, "s1", start["session_id"])
	require.Equal(t, []any{"en", "de"}, start["languages"])
	require.Equal(t, "nova-3", start["model"])
	require.Equal(t, true, start["record_enabled"])

	require.NoError(t, client.SetMicMuted(ctx, true))
	require.Equal(t, true, server.request("SetMicMuted").AsMap()["value"])

	require.NoError(t, client.RunBatch(ctx, session.BatchParams{SessionID: "s2", FilePath: "/tmp/a.wav"}))
	batch := server.request("RunBatch").AsMap()
	require.Equal(t, "/tmp/a.wav", batch["file_path"])
	require.Equal(t, "deepgram", batch["provider"])

	require.NoError(t, client.StopSession(ctx))
	require.NotNil(t, server.request("StopSession"))
}

func TestClientSurfacesServerErrors(t *testing.T) {
	server := &testListenerServer{startErr: status.Error(codes.FailedPrecondition, "no input device")}
	endpoint, shutdown := startTestListenerServer(t, server)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, nil, Config{Endpoint: endpoint}, events.NewBus())
	require.NoError(t, err)
	defer client.Close()

	err = client.StartSession(ctx, session.SessionParams{SessionID: "s1"})
	require.Error(t, err)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestUnimplementedServerRejectsCommands(t *testing.T) {
	endpoint, shutdown := startTestListenerServer(t, UnimplementedListenerServer{})
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, nil, Config{Endpoint: endpoint}, events.NewBus())
	require.NoError(t, err)
	defer client.Close()

	err = client.StopSession(ctx)
	require.Equal(t, codes.Unimplemented, status.Code(err))

	require.Eventually(t, func() bool {
		select {
		case <-client.Done():
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, codes.Unimplemented, status.Code(client.Err()))

	err = client.StopSession(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "event stream failed")
}

func TestDialEmptyEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), nil, Config{Endpoint: "   "}, events.NewBus())
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint is empty")
}

func TestDialReadinessTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, nil, Config{
		Endpoint:    "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	}, events.NewBus())
	require.Error(t, err)
	require.Contains(t, err.Error(), "readiness")
}

func TestDecodeEventRejectsMalformedEnvelopes(t *testing.T) {
	unknown, err := structpb.NewStruct(map[string]any{"topic": "mystery", "payload": map[string]any{"x": 1}})
	require.NoError(t, err)
	_, err = DecodeEvent(unknown)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown event topic")

	empty, err := structpb.NewStruct(map[string]any{"topic": "lifecycle"})
	require.NoError(t, err)
	_, err = DecodeEvent(empty)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no payload")

	badChunk, err := structpb.NewStruct(map[string]any{
		"topic":   "batch",
		"payload": map[string]any{"session_id": "s1", "type": "batchProgress", "response": "not-an-object"},
	})
	require.NoError(t, err)
	_, err = DecodeEvent(badChunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "batch progress chunk")
}

func TestRunWithTimeoutTimesOut(t *testing.T) {
	err := runWithTimeout(context.Background(), 20*time.Millisecond, func() error {
		time.Sleep(120 * time.Millisecond)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestWithTimeoutTimesOut(t *testing.T) {
	_, err := withTimeout(context.Background(), 20*time.Millisecond, func() (grpc.ClientStream, error) {
		time.Sleep(120 * time.Millisecond)
		return nil, nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestWithTimeoutStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	defer close(release)

	_, err := withTimeout(ctx, time.Second, func() (int, error) {
		<-release
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWithTimeoutReturnsCallError(t *testing.T) {
	want := errors.New("boom")
	err := runWithTimeout(context.Background(), time.Second, func() error {
		return want
	})
	require.ErrorIs(t, err, want)
}

func TestProbe(t *testing.T) {
	addr, shutdown := startTestListenerServer(t, &testListenerServer{})
	defer shutdown()

	require.NoError(t, Probe(context.Background(), addr, 2*time.Second))

	err := Probe(context.Background(), "127.0.0.1:1", 100*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "readiness")

	err = Probe(context.Background(), "", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint is empty")
}
