// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package wire defines the gRPC wire contract of the packet router.

The contract is consumed by existing validator-node interceptors, so
the protobuf field numbers and the service name are frozen. See
packet.proto in this directory for the authoritative schema.

Rather than checking in generated bindings, this package keeps the
field numbers explicit in code using [protowire]. Both the server and
the client must force [Codec] so that gRPC uses these encoders (the
messages intentionally do not implement [proto.Message]).

[protowire]: google.golang.org/protobuf/encoding/protowire
*/
package wire
