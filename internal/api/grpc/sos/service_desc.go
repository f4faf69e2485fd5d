package sos

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "sos.v1.SOSService"
	// FullMethodSendAlert is the SendAlert method path.
	FullMethodSendAlert = "/" + ServiceName + "/SendAlert"
	// FullMethodGetContacts is the GetContacts method path.
	FullMethodGetContacts = "/" + ServiceName + "/GetContacts"
)

// Handler is implemented by the gRPC server.
type Handler interface {
	SendAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetContacts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes SOSService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Registered once at startup and never modified.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendAlert",
			Handler:    sendAlertHandler,
		},
		{
			MethodName: "GetContacts",
			Handler:    getContactsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sos/v1/sos.proto",
}

// Register attaches the handler to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, handler Handler) {
	registrar.RegisterService(&ServiceDesc, handler)
}

func sendAlertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) { //nolint:revive // Signature fixed by grpc.MethodHandler.
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Handler).SendAlert(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodSendAlert,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handler).SendAlert(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
	}

	return interceptor(ctx, in, info, handler)
}

func getContactsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) { //nolint:revive // Signature fixed by grpc.MethodHandler.
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Handler).GetContacts(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodGetContacts,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handler).GetContacts(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
	}

	return interceptor(ctx, in, info, handler)
}
