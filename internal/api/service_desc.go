package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// InspectorServiceName is the fully qualified gRPC service name.
const InspectorServiceName = "instrumetriq.inspector.v1.Inspector"

const inspectSnapshotMethod = "/" + InspectorServiceName + "/InspectSnapshot"

// InspectorServer is the server API of the Inspector service. Requests and
// reports travel as google.protobuf.Struct so manifests can evolve without
// regenerating message types.
type InspectorServer interface {
	InspectSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterInspectorServer attaches srv to s.
func RegisterInspectorServer(s grpc.ServiceRegistrar, srv InspectorServer) {
	s.RegisterService(&InspectorServiceDesc, srv)
}

func inspectSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InspectorServer).InspectSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: inspectSnapshotMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InspectorServer).InspectSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InspectorServiceDesc describes the Inspector service for grpc.Server.
var InspectorServiceDesc = grpc.ServiceDesc{
	ServiceName: InspectorServiceName,
	HandlerType: (*InspectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "InspectSnapshot",
			Handler:    inspectSnapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "instrumetriq/inspector/v1/inspector.proto",
}

// InspectorClient calls a remote Inspector service.
type InspectorClient struct {
	cc grpc.ClientConnInterface
}

// NewInspectorClient wraps an established connection.
func NewInspectorClient(cc grpc.ClientConnInterface) *InspectorClient {
	return &InspectorClient{cc: cc}
}

// InspectSnapshot asks the server to inspect one snapshot.
func (c *InspectorClient) InspectSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, inspectSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
