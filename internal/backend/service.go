// Package backend talks to the external recognition backend over gRPC. Commands are unary
// calls; backend events arrive on one server stream and are republished on an event bus.
package backend

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service implemented by the backend.
const ServiceName = "listend.backend.v1.Listener"

const (
	methodStartSession = "/" + ServiceName + "/StartSession"
	methodStopSession  = "/" + ServiceName + "/StopSession"
	methodSetMicMuted  = "/" + ServiceName + "/SetMicMuted"
	methodRunBatch     = "/" + ServiceName + "/RunBatch"
	methodEvents       = "/" + ServiceName + "/Events"
)

// ListenerServer is the server side of the backend contract. Requests and event
// envelopes are google.protobuf.Struct values.
type ListenerServer interface {
	StartSession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	StopSession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SetMicMuted(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RunBatch(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Events(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedListenerServer answers every method with codes.Unimplemented.
type UnimplementedListenerServer struct{}

func (UnimplementedListenerServer) StartSession(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method StartSession not implemented")
}

func (UnimplementedListenerServer) StopSession(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method StopSession not implemented")
}

func (UnimplementedListenerServer) SetMicMuted(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetMicMuted not implemented")
}

func (UnimplementedListenerServer) RunBatch(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method RunBatch not implemented")
}

func (UnimplementedListenerServer) Events(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method Events not implemented")
}

// RegisterListenerServer registers srv on s.
func RegisterListenerServer(s grpc.ServiceRegistrar, srv ListenerServer) {
	s.RegisterService(&listenerServiceDesc, srv)
}

var listenerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ListenerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler(methodStartSession, ListenerServer.StartSession)},
		{MethodName: "StopSession", Handler: unaryHandler(methodStopSession, ListenerServer.StopSession)},
		{MethodName: "SetMicMuted", Handler: unaryHandler(methodSetMicMuted, ListenerServer.SetMicMuted)},
		{MethodName: "RunBatch", Handler: unaryHandler(methodRunBatch, ListenerServer.RunBatch)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "listend/backend/v1/listener.proto",
}

type unaryMethod func(ListenerServer, context.Context, *structpb.Struct) (*emptypb.Empty, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ListenerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ListenerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ListenerServer).Events(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
