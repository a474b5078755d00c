//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Registry of simulated validator nodes.
//

// Package directory tracks registered simulated nodes, keyed by
// their peer port, and assigns each node a monotonic index into
// the partition tables.
package directory

import (
	"errors"
	"sort"
	"sync"

	"github.com/ledgersim/netsplit/wire"
)

// ErrMalformed means a registration record failed basic validation.
// It is recovered locally by the caller: a malformed record never
// aborts a registration stream.
var ErrMalformed = errors.New("directory: registration record has no peer port")

// Node is one registered simulated node.
type Node struct {
	// Index is the node's position in the partition index space,
	// assigned on first registration.
	Index uint32

	// PeerPort is the unique routing key.
	PeerPort uint32

	// WsPublicPort is the public websocket port.
	WsPublicPort uint32

	// WsAdminPort is the admin websocket port.
	WsAdminPort uint32

	// RpcPort is the JSON-RPC port.
	RpcPort uint32

	// Status is the last status string the node declared.
	Status string

	// ValidationKey is opaque validation key material.
	ValidationKey string

	// ValidationPrivateKey is opaque validation key material.
	ValidationPrivateKey string

	// ValidationPublicKey is opaque validation key material.
	ValidationPublicKey string

	// ValidationSeed is opaque validation key material.
	ValidationSeed string
}

// Directory is the node registry. It is read-mostly: many
// concurrent readers, rare writers.
//
// The zero value is ready to use.
type Directory struct {
	// mu protects nodes.
	mu sync.RWMutex

	// nodes maps peer port to node.
	nodes map[uint32]*Node
}

// Upsert inserts or updates the node described by info.
//
// Registration is idempotent per peer port: the first record for a
// port creates the node and assigns the next free index; later
// records overwrite the mutable fields in place. Records with a
// zero peer port are rejected with [ErrMalformed].
func (d *Directory) Upsert(info *wire.ValidatorNodeInfo) (*Node, error) {
	if info.PeerPort == 0 {
		return nil, ErrMalformed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.nodes == nil {
		d.nodes = make(map[uint32]*Node)
	}
	node, ok := d.nodes[info.PeerPort]
	if !ok {
		node = &Node{
			Index:    uint32(len(d.nodes)),
			PeerPort: info.PeerPort,
		}
		d.nodes[info.PeerPort] = node
	}
	node.WsPublicPort = info.WsPublicPort
	node.WsAdminPort = info.WsAdminPort
	node.RpcPort = info.RpcPort
	node.Status = info.Status
	node.ValidationKey = info.ValidationKey
	node.ValidationPrivateKey = info.ValidationPrivateKey
	node.ValidationPublicKey = info.ValidationPublicKey
	node.ValidationSeed = info.ValidationSeed

	copied := *node
	return &copied, nil
}

// Lookup returns a copy of the node registered with the given peer
// port, if any.
func (d *Directory) Lookup(peerPort uint32) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[peerPort]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// Len returns the number of registered nodes.
func (d *Directory) Len() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint32(len(d.nodes))
}

// Nodes returns copies of all registered nodes ordered by index.
func (d *Directory) Nodes() []Node {
	d.mu.RLock()
	nodes := make([]Node, 0, len(d.nodes))
	for _, node := range d.nodes {
		nodes = append(nodes, *node)
	}
	d.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Index < nodes[j].Index
	})
	return nodes
}

// Reset clears the directory between simulation runs.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.nodes = nil
	d.mu.Unlock()
}
