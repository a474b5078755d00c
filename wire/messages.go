//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Message types and their wire encoding.
//

package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is the interface implemented by every message in the
// packet.PacketService contract. [Codec] dispatches on it.
type Message interface {
	// MarshalWire appends nothing for zero-valued fields and
	// returns the proto3 encoding of the message.
	MarshalWire() ([]byte, error)

	// UnmarshalWire decodes data into the message, skipping
	// unknown fields.
	UnmarshalWire(data []byte) error
}

// Packet is an intercepted validator-to-validator message. The
// payload is opaque to the router; endpoints are identified by
// their registered peer ports.
type Packet struct {
	// Data is the opaque payload.
	Data []byte

	// FromPort is the sender's peer port.
	FromPort uint32

	// ToPort is the receiver's peer port.
	ToPort uint32
}

// Field numbers for [Packet]. Frozen.
const (
	packetFieldData     = 1
	packetFieldFromPort = 2
	packetFieldToPort   = 3
)

// MarshalWire implements [Message].
func (m *Packet) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, packetFieldData, m.Data)
	b = appendUint32Field(b, packetFieldFromPort, m.FromPort)
	b = appendUint32Field(b, packetFieldToPort, m.ToPort)
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *Packet) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case packetFieldData:
			return setBytes(&m.Data, typ, value)
		case packetFieldFromPort:
			return setUint32(&m.FromPort, typ, value)
		case packetFieldToPort:
			return setUint32(&m.ToPort, typ, value)
		default:
			return nil
		}
	})
}

// PacketAck is the router's verdict on a [Packet]. The Action and
// SendAmount codes are defined by the router package; at the wire
// level they are plain uint32.
type PacketAck struct {
	// Data echoes the (possibly mutated) payload.
	Data []byte

	// Action is the verdict code.
	Action uint32

	// SendAmount is how many times the caller should transmit
	// the payload.
	SendAmount uint32
}

// Field numbers for [PacketAck]. Frozen.
const (
	packetAckFieldData       = 1
	packetAckFieldAction     = 2
	packetAckFieldSendAmount = 3
)

// MarshalWire implements [Message].
func (m *PacketAck) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, packetAckFieldData, m.Data)
	b = appendUint32Field(b, packetAckFieldAction, m.Action)
	b = appendUint32Field(b, packetAckFieldSendAmount, m.SendAmount)
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *PacketAck) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case packetAckFieldData:
			return setBytes(&m.Data, typ, value)
		case packetAckFieldAction:
			return setUint32(&m.Action, typ, value)
		case packetAckFieldSendAmount:
			return setUint32(&m.SendAmount, typ, value)
		default:
			return nil
		}
	})
}

// ValidatorNodeInfo is one registration record streamed by a node
// at startup. The validation material is opaque to the router.
type ValidatorNodeInfo struct {
	// PeerPort is the unique routing key.
	PeerPort uint32

	// WsPublicPort is the public websocket port.
	WsPublicPort uint32

	// WsAdminPort is the admin websocket port.
	WsAdminPort uint32

	// RpcPort is the JSON-RPC port.
	RpcPort uint32

	// Status is the node-declared status string.
	Status string

	// ValidationKey is the validation key in RFC-1751 form.
	ValidationKey string

	// ValidationPrivateKey is the validation private key.
	ValidationPrivateKey string

	// ValidationPublicKey is the validation public key.
	ValidationPublicKey string

	// ValidationSeed is the validation seed.
	ValidationSeed string
}

// Field numbers for [ValidatorNodeInfo]. Frozen.
const (
	nodeInfoFieldPeerPort             = 1
	nodeInfoFieldWsPublicPort         = 2
	nodeInfoFieldWsAdminPort          = 3
	nodeInfoFieldRpcPort              = 4
	nodeInfoFieldStatus               = 5
	nodeInfoFieldValidationKey        = 6
	nodeInfoFieldValidationPrivateKey = 7
	nodeInfoFieldValidationPublicKey  = 8
	nodeInfoFieldValidationSeed       = 9
)

// MarshalWire implements [Message].
func (m *ValidatorNodeInfo) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendUint32Field(b, nodeInfoFieldPeerPort, m.PeerPort)
	b = appendUint32Field(b, nodeInfoFieldWsPublicPort, m.WsPublicPort)
	b = appendUint32Field(b, nodeInfoFieldWsAdminPort, m.WsAdminPort)
	b = appendUint32Field(b, nodeInfoFieldRpcPort, m.RpcPort)
	b = appendStringField(b, nodeInfoFieldStatus, m.Status)
	b = appendStringField(b, nodeInfoFieldValidationKey, m.ValidationKey)
	b = appendStringField(b, nodeInfoFieldValidationPrivateKey, m.ValidationPrivateKey)
	b = appendStringField(b, nodeInfoFieldValidationPublicKey, m.ValidationPublicKey)
	b = appendStringField(b, nodeInfoFieldValidationSeed, m.ValidationSeed)
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *ValidatorNodeInfo) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case nodeInfoFieldPeerPort:
			return setUint32(&m.PeerPort, typ, value)
		case nodeInfoFieldWsPublicPort:
			return setUint32(&m.WsPublicPort, typ, value)
		case nodeInfoFieldWsAdminPort:
			return setUint32(&m.WsAdminPort, typ, value)
		case nodeInfoFieldRpcPort:
			return setUint32(&m.RpcPort, typ, value)
		case nodeInfoFieldStatus:
			return setString(&m.Status, typ, value)
		case nodeInfoFieldValidationKey:
			return setString(&m.ValidationKey, typ, value)
		case nodeInfoFieldValidationPrivateKey:
			return setString(&m.ValidationPrivateKey, typ, value)
		case nodeInfoFieldValidationPublicKey:
			return setString(&m.ValidationPublicKey, typ, value)
		case nodeInfoFieldValidationSeed:
			return setString(&m.ValidationSeed, typ, value)
		default:
			return nil
		}
	})
}

// ValidatorNodeInfoAck is the single response closing a
// registration stream.
type ValidatorNodeInfoAck struct {
	// Status is "ok" or a human-readable error summary.
	Status string
}

// Field numbers for [ValidatorNodeInfoAck]. Frozen.
const nodeInfoAckFieldStatus = 1

// MarshalWire implements [Message].
func (m *ValidatorNodeInfoAck) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendStringField(b, nodeInfoAckFieldStatus, m.Status)
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *ValidatorNodeInfoAck) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num == nodeInfoAckFieldStatus {
			return setString(&m.Status, typ, value)
		}
		return nil
	})
}

// GetConfig is the empty request for the config snapshot.
type GetConfig struct{}

// MarshalWire implements [Message].
func (m *GetConfig) MarshalWire() ([]byte, error) {
	return nil, nil
}

// UnmarshalWire implements [Message].
func (m *GetConfig) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		return nil
	})
}

// Partition is an ordered set of node indices belonging to the
// same reachability (or trust) group.
type Partition struct {
	// Nodes lists node indices in 0..number_of_nodes-1.
	Nodes []uint32
}

// Field numbers for [Partition]. Frozen.
const partitionFieldNodes = 1

// MarshalWire implements [Message].
func (m *Partition) MarshalWire() ([]byte, error) {
	var b []byte
	// proto3 emits repeated scalars packed.
	if len(m.Nodes) > 0 {
		var packed []byte
		for _, n := range m.Nodes {
			packed = protowire.AppendVarint(packed, uint64(n))
		}
		b = protowire.AppendTag(b, partitionFieldNodes, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *Partition) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != partitionFieldNodes {
			return nil
		}
		// Accept both packed and unpacked encodings.
		switch typ {
		case protowire.BytesType:
			for len(value) > 0 {
				v, n := protowire.ConsumeVarint(value)
				if n < 0 {
					return wireError(n)
				}
				m.Nodes = append(m.Nodes, uint32(v))
				value = value[n:]
			}
			return nil
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			if n < 0 {
				return wireError(n)
			}
			m.Nodes = append(m.Nodes, uint32(v))
			return nil
		default:
			return fmt.Errorf("%w: partition.nodes: unexpected wire type %d", ErrWire, typ)
		}
	})
}

// Config is the immutable topology snapshot handed to nodes.
type Config struct {
	// BasePortPeer is the first peer port.
	BasePortPeer uint32

	// BasePortWs is the first public websocket port.
	BasePortWs uint32

	// BasePortWsAdmin is the first admin websocket port.
	BasePortWsAdmin uint32

	// BasePortRpc is the first JSON-RPC port.
	BasePortRpc uint32

	// NumberOfNodes is the total node count.
	NumberOfNodes uint32

	// NetPartitions is the network-reachability partition table.
	NetPartitions []*Partition

	// UnlPartitions is the trust (UNL) partition table.
	UnlPartitions []*Partition
}

// Field numbers for [Config]. Frozen.
const (
	configFieldBasePortPeer    = 1
	configFieldBasePortWs      = 2
	configFieldBasePortWsAdmin = 3
	configFieldBasePortRpc     = 4
	configFieldNumberOfNodes   = 5
	configFieldNetPartitions   = 6
	configFieldUnlPartitions   = 7
)

// MarshalWire implements [Message].
func (m *Config) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendUint32Field(b, configFieldBasePortPeer, m.BasePortPeer)
	b = appendUint32Field(b, configFieldBasePortWs, m.BasePortWs)
	b = appendUint32Field(b, configFieldBasePortWsAdmin, m.BasePortWsAdmin)
	b = appendUint32Field(b, configFieldBasePortRpc, m.BasePortRpc)
	b = appendUint32Field(b, configFieldNumberOfNodes, m.NumberOfNodes)
	var err error
	if b, err = appendMessageList(b, configFieldNetPartitions, m.NetPartitions); err != nil {
		return nil, err
	}
	if b, err = appendMessageList(b, configFieldUnlPartitions, m.UnlPartitions); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalWire implements [Message].
func (m *Config) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case configFieldBasePortPeer:
			return setUint32(&m.BasePortPeer, typ, value)
		case configFieldBasePortWs:
			return setUint32(&m.BasePortWs, typ, value)
		case configFieldBasePortWsAdmin:
			return setUint32(&m.BasePortWsAdmin, typ, value)
		case configFieldBasePortRpc:
			return setUint32(&m.BasePortRpc, typ, value)
		case configFieldNumberOfNodes:
			return setUint32(&m.NumberOfNodes, typ, value)
		case configFieldNetPartitions:
			return appendDecodedPartition(&m.NetPartitions, typ, value)
		case configFieldUnlPartitions:
			return appendDecodedPartition(&m.UnlPartitions, typ, value)
		default:
			return nil
		}
	})
}

// appendDecodedPartition decodes one embedded [Partition] and
// appends it to the given list.
func appendDecodedPartition(list *[]*Partition, typ protowire.Type, value []byte) error {
	if typ != protowire.BytesType {
		return fmt.Errorf("%w: partition: unexpected wire type %d", ErrWire, typ)
	}
	part := &Partition{}
	if err := part.UnmarshalWire(value); err != nil {
		return err
	}
	*list = append(*list, part)
	return nil
}
