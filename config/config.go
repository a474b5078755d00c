//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Topology snapshot generation.
//

// Package config derives the immutable topology snapshot handed to
// simulated nodes: base ports, node count, and both partition
// tables. It is the single source of truth a node consults to
// learn its own place in the simulated topology.
package config

import (
	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/topology"
	"github.com/ledgersim/netsplit/wire"
)

// Ports holds the base ports of the simulated validator network.
// Node i listens on base+i for each port kind.
type Ports struct {
	// Peer is the first peer port.
	Peer uint32

	// WsPublic is the first public websocket port.
	WsPublic uint32

	// WsAdmin is the first admin websocket port.
	WsAdmin uint32

	// Rpc is the first JSON-RPC port.
	Rpc uint32
}

// DefaultPorts are the base ports used by the validator test
// harness when none are configured.
var DefaultPorts = Ports{
	Peer:     60000,
	WsPublic: 61000,
	WsAdmin:  62000,
	Rpc:      63000,
}

// Generator produces [*wire.Config] snapshots.
//
// Each snapshot is an independent immutable value: callers holding
// a previous snapshot keep a consistent (if stale) topology view
// across re-partitioning.
type Generator struct {
	// Ports are the base ports to advertise.
	Ports Ports

	// NumberOfNodes fixes the node count. When zero, the count
	// is derived from Directory at snapshot time.
	NumberOfNodes uint32

	// Directory supplies the node count when NumberOfNodes is
	// zero. May be nil when NumberOfNodes is set.
	Directory *directory.Directory

	// Topology supplies the partition tables. When nil, every
	// snapshot carries the default no-split topology: a single
	// network partition and a single UNL partition holding all
	// nodes.
	Topology topology.Provider
}

// Snapshot returns the current topology snapshot. It has no side
// effects and is safe for unlimited concurrent callers.
func (g *Generator) Snapshot() *wire.Config {
	tables := g.tables()
	return &wire.Config{
		BasePortPeer:    g.Ports.Peer,
		BasePortWs:      g.Ports.WsPublic,
		BasePortWsAdmin: g.Ports.WsAdmin,
		BasePortRpc:     g.Ports.Rpc,
		NumberOfNodes:   tables.Net.NumberOfNodes(),
		NetPartitions:   toWirePartitions(tables.Net.Partitions()),
		UnlPartitions:   toWirePartitions(tables.UNL.Partitions()),
	}
}

// tables resolves the topology version backing a snapshot.
func (g *Generator) tables() *topology.Tables {
	if g.Topology != nil {
		return g.Topology.Load()
	}
	n := g.NumberOfNodes
	if n == 0 && g.Directory != nil {
		n = g.Directory.Len()
	}
	return topology.SingleTables(n)
}

// toWirePartitions converts partition lists to their wire form.
func toWirePartitions(parts [][]uint32) []*wire.Partition {
	out := make([]*wire.Partition, 0, len(parts))
	for _, part := range parts {
		out = append(out, &wire.Partition{Nodes: part})
	}
	return out
}
