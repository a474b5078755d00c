//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Service descriptor and server-side bindings, laid out the way
// protoc-gen-go-grpc would generate them.
//

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names of packet.PacketService. Frozen.
const (
	ServiceName = "packet.PacketService"

	MethodSendPacket            = "/packet.PacketService/SendPacket"
	MethodSendValidatorNodeInfo = "/packet.PacketService/SendValidatorNodeInfo"
	MethodGetConfig             = "/packet.PacketService/GetConfig"
)

// PacketServiceServer is the API the router service implements.
type PacketServiceServer interface {
	// SendPacket returns the routing verdict for one packet. It
	// must return a well-formed ack for every registered-or-not
	// endpoint pair; only transport failures are errors.
	SendPacket(ctx context.Context, pkt *Packet) (*PacketAck, error)

	// SendValidatorNodeInfo consumes a registration stream and
	// acknowledges once with a final status.
	SendValidatorNodeInfo(stream PacketServiceSendValidatorNodeInfoServer) error

	// GetConfig returns the current topology snapshot.
	GetConfig(ctx context.Context, req *GetConfig) (*Config, error)
}

// PacketServiceSendValidatorNodeInfoServer is the server view of
// the client-streaming registration RPC.
type PacketServiceSendValidatorNodeInfoServer interface {
	// SendAndClose sends the final ack and closes the stream.
	SendAndClose(ack *ValidatorNodeInfoAck) error

	// Recv receives the next registration record, returning
	// io.EOF when the client half-closes.
	Recv() (*ValidatorNodeInfo, error)

	grpc.ServerStream
}

// sendValidatorNodeInfoServer adapts a raw [grpc.ServerStream].
type sendValidatorNodeInfoServer struct {
	grpc.ServerStream
}

func (s *sendValidatorNodeInfoServer) SendAndClose(ack *ValidatorNodeInfoAck) error {
	return s.ServerStream.SendMsg(ack)
}

func (s *sendValidatorNodeInfoServer) Recv() (*ValidatorNodeInfo, error) {
	info := new(ValidatorNodeInfo)
	if err := s.ServerStream.RecvMsg(info); err != nil {
		return nil, err
	}
	return info, nil
}

// RegisterPacketServiceServer registers srv with the registrar.
//
// The registrar must serve with [Codec] forced; [NewServer] takes
// care of both steps.
func RegisterPacketServiceServer(reg grpc.ServiceRegistrar, srv PacketServiceServer) {
	reg.RegisterService(&PacketServiceDesc, srv)
}

// NewServer creates a [*grpc.Server] with [Codec] forced and srv
// registered.
func NewServer(srv PacketServiceServer, extra ...grpc.ServerOption) *grpc.Server {
	server := grpc.NewServer(ServerOptions(extra...)...)
	RegisterPacketServiceServer(server, srv)
	return server
}

// PacketServiceDesc is the grpc service descriptor for
// packet.PacketService.
var PacketServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PacketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendPacket",
			Handler:    sendPacketHandler,
		},
		{
			MethodName: "GetConfig",
			Handler:    getConfigHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SendValidatorNodeInfo",
			Handler:       sendValidatorNodeInfoHandler,
			ClientStreams: true,
		},
	},
	Metadata: "packet.proto",
}

func sendPacketHandler(srv any, ctx context.Context,
	dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Packet)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PacketServiceServer).SendPacket(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodSendPacket,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PacketServiceServer).SendPacket(ctx, req.(*Packet))
	}
	return interceptor(ctx, in, info, handler)
}

func getConfigHandler(srv any, ctx context.Context,
	dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetConfig)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PacketServiceServer).GetConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodGetConfig,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PacketServiceServer).GetConfig(ctx, req.(*GetConfig))
	}
	return interceptor(ctx, in, info, handler)
}

func sendValidatorNodeInfoHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PacketServiceServer).SendValidatorNodeInfo(
		&sendValidatorNodeInfoServer{stream})
}
