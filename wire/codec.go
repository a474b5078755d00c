//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// gRPC codec for the hand-maintained bindings.
//

package wire

import (
	"fmt"

	"google.golang.org/grpc"
)

// Codec encodes and decodes [Message] values for gRPC.
//
// It reports the "proto" name so the content-type negotiated on the
// wire stays application/grpc+proto, which is what the existing
// tonic-based interceptors expect. It is NOT registered globally:
// install it with [grpc.ForceServerCodec] on servers and
// [grpc.ForceCodec] on calls, or use [NewPacketServiceClient] and
// [RegisterPacketServiceServer] which do that for you.
type Codec struct{}

// Marshal implements [encoding.Codec].
func (Codec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return msg.MarshalWire()
}

// Unmarshal implements [encoding.Codec].
func (Codec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return msg.UnmarshalWire(data)
}

// Name implements [encoding.Codec].
func (Codec) Name() string {
	return "proto"
}

// ServerOptions returns the [grpc.ServerOption] list required to
// serve [PacketServiceServer] implementations.
func ServerOptions(extra ...grpc.ServerOption) []grpc.ServerOption {
	return append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, extra...)
}
