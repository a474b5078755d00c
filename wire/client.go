//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Client-side bindings mirroring the tonic client used by the
// validator interceptors.
//

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// PacketServiceClient is the client API of packet.PacketService.
type PacketServiceClient interface {
	// SendPacket asks the router for a verdict on one packet.
	SendPacket(ctx context.Context, pkt *Packet, opts ...grpc.CallOption) (*PacketAck, error)

	// SendValidatorNodeInfo opens a registration stream.
	SendValidatorNodeInfo(ctx context.Context, opts ...grpc.CallOption) (PacketServiceSendValidatorNodeInfoClient, error)

	// GetConfig fetches the current topology snapshot.
	GetConfig(ctx context.Context, req *GetConfig, opts ...grpc.CallOption) (*Config, error)
}

// PacketServiceSendValidatorNodeInfoClient is the client view of
// the registration stream.
type PacketServiceSendValidatorNodeInfoClient interface {
	// Send streams one registration record.
	Send(info *ValidatorNodeInfo) error

	// CloseAndRecv half-closes the stream and waits for the ack.
	CloseAndRecv() (*ValidatorNodeInfoAck, error)

	grpc.ClientStream
}

// packetServiceClient implements [PacketServiceClient].
type packetServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPacketServiceClient creates a [PacketServiceClient] on top of
// an existing connection. Every call forces [Codec].
func NewPacketServiceClient(cc grpc.ClientConnInterface) PacketServiceClient {
	return &packetServiceClient{cc: cc}
}

// withCodec prepends the forced-codec option so callers may still
// override other options per call.
func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func (c *packetServiceClient) SendPacket(ctx context.Context, pkt *Packet, opts ...grpc.CallOption) (*PacketAck, error) {
	ack := new(PacketAck)
	err := c.cc.Invoke(ctx, MethodSendPacket, pkt, ack, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *packetServiceClient) GetConfig(ctx context.Context, req *GetConfig, opts ...grpc.CallOption) (*Config, error) {
	cfg := new(Config)
	err := c.cc.Invoke(ctx, MethodGetConfig, req, cfg, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *packetServiceClient) SendValidatorNodeInfo(ctx context.Context, opts ...grpc.CallOption) (PacketServiceSendValidatorNodeInfoClient, error) {
	stream, err := c.cc.NewStream(ctx, &PacketServiceDesc.Streams[0],
		MethodSendValidatorNodeInfo, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &sendValidatorNodeInfoClient{stream}, nil
}

// sendValidatorNodeInfoClient adapts a raw [grpc.ClientStream].
type sendValidatorNodeInfoClient struct {
	grpc.ClientStream
}

func (s *sendValidatorNodeInfoClient) Send(info *ValidatorNodeInfo) error {
	return s.ClientStream.SendMsg(info)
}

func (s *sendValidatorNodeInfoClient) CloseAndRecv() (*ValidatorNodeInfoAck, error) {
	if err := s.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(ValidatorNodeInfoAck)
	if err := s.ClientStream.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}
