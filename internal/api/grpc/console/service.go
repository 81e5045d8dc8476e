package console

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "solarmonitor.v1.ConsoleService"

// Full method names.
const (
	MethodSilence        = "/" + ServiceName + "/Silence"
	MethodSetMonitoring  = "/" + ServiceName + "/SetMonitoring"
	MethodRefresh        = "/" + ServiceName + "/Refresh"
	MethodGetStatus      = "/" + ServiceName + "/GetStatus"
	MethodGetSettings    = "/" + ServiceName + "/GetSettings"
	MethodUpdateSettings = "/" + ServiceName + "/UpdateSettings"
)

// Metadata keys carrying the caller identity.
const (
	MetadataHostname = "x-actor-hostname"
	MetadataUsername = "x-actor-username"
)

// ConsoleServer is the server side of the control API.
type ConsoleServer interface {
	Silence(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	SetMonitoring(ctx context.Context, in *wrapperspb.BoolValue) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *wrapperspb.BoolValue) (*emptypb.Empty, error)
	GetStatus(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	GetSettings(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	UpdateSettings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the control API for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Descriptor shape required by grpc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConsoleServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Silence",
			Handler:    unary(MethodSilence, newEmpty, ConsoleServer.Silence),
		},
		{
			MethodName: "SetMonitoring",
			Handler:    unary(MethodSetMonitoring, newBool, ConsoleServer.SetMonitoring),
		},
		{
			MethodName: "Refresh",
			Handler:    unary(MethodRefresh, newBool, ConsoleServer.Refresh),
		},
		{
			MethodName: "GetStatus",
			Handler:    unary(MethodGetStatus, newEmpty, ConsoleServer.GetStatus),
		},
		{
			MethodName: "GetSettings",
			Handler:    unary(MethodGetSettings, newEmpty, ConsoleServer.GetSettings),
		},
		{
			MethodName: "UpdateSettings",
			Handler:    unary(MethodUpdateSettings, newStruct, ConsoleServer.UpdateSettings),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solarmonitor/v1/console.proto",
}

// Register attaches srv to the gRPC registrar.
func Register(registrar grpc.ServiceRegistrar, srv ConsoleServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty       { return new(emptypb.Empty) }
func newBool() *wrapperspb.BoolValue { return new(wrapperspb.BoolValue) }
func newStruct() *structpb.Struct    { return new(structpb.Struct) }

// unary adapts a typed method to grpc.MethodHandler, honouring interceptors.
func unary[Req, Resp any](
	fullMethod string,
	newRequest func() Req,
	call func(ConsoleServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newRequest()
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(ConsoleServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(Req)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}
