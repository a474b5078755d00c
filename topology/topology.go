//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Partition tables with O(1) membership resolution.
//

// Package topology models the simulated network topology: disjoint
// partitions of the node index space, resolved in O(1) through a
// reverse index built once per table version.
package topology

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvariant means the partitions do not form a complete disjoint
// cover of 0..numberOfNodes-1. It is fatal at build time: a table
// failing this check must never serve requests.
var ErrInvariant = errors.New("topology: partitions do not cover the node index space")

// NoPartition is returned by [*Table.Resolve] for unknown indices.
const NoPartition = -1

// Table is an immutable partition table. Construct with [NewTable]
// or [SingleTable]; a built table is safe for unlimited concurrent
// readers.
type Table struct {
	// parts holds the partitions as given.
	parts [][]uint32

	// index maps node index to partition id.
	index []int
}

// NewTable builds a [*Table] for numberOfNodes nodes from the given
// partitions, validating that every node index in
// 0..numberOfNodes-1 appears in exactly one partition.
func NewTable(numberOfNodes uint32, parts [][]uint32) (*Table, error) {
	index := make([]int, numberOfNodes)
	for i := range index {
		index[i] = NoPartition
	}

	covered := uint32(0)
	for id, part := range parts {
		for _, node := range part {
			if node >= numberOfNodes {
				return nil, fmt.Errorf(
					"%w: node %d out of range [0,%d)",
					ErrInvariant, node, numberOfNodes)
			}
			if index[node] != NoPartition {
				return nil, fmt.Errorf(
					"%w: node %d in partitions %d and %d",
					ErrInvariant, node, index[node], id)
			}
			index[node] = id
			covered++
		}
	}
	if covered != numberOfNodes {
		return nil, fmt.Errorf(
			"%w: %d of %d nodes assigned",
			ErrInvariant, covered, numberOfNodes)
	}

	copied := make([][]uint32, 0, len(parts))
	for _, part := range parts {
		copied = append(copied, append([]uint32{}, part...))
	}
	return &Table{parts: copied, index: index}, nil
}

// SingleTable builds the default no-split table: one partition
// containing every node index.
func SingleTable(numberOfNodes uint32) *Table {
	all := make([]uint32, numberOfNodes)
	for i := range all {
		all[i] = uint32(i)
	}
	table, err := NewTable(numberOfNodes, [][]uint32{all})
	if err != nil {
		// Unreachable: the identity cover is always valid.
		panic(err)
	}
	return table
}

// Resolve returns the partition id owning the given node index, or
// [NoPartition] when the index is out of range.
func (t *Table) Resolve(node uint32) int {
	if node >= uint32(len(t.index)) {
		return NoPartition
	}
	return t.index[node]
}

// NumberOfNodes returns the size of the covered index space.
func (t *Table) NumberOfNodes() uint32 {
	return uint32(len(t.index))
}

// Partitions returns a copy of the partition lists.
func (t *Table) Partitions() [][]uint32 {
	copied := make([][]uint32, 0, len(t.parts))
	for _, part := range t.parts {
		copied = append(copied, append([]uint32{}, part...))
	}
	return copied
}

// Tables pairs the two independent partition tables of one
// topology version. The tables need not align, but they must cover
// the same index space.
type Tables struct {
	// Net is the network-reachability table.
	Net *Table

	// UNL is the trust (UNL) table.
	UNL *Table
}

// NewTables builds both tables and checks they cover the same
// index space.
func NewTables(numberOfNodes uint32, net, unl [][]uint32) (*Tables, error) {
	netTable, err := NewTable(numberOfNodes, net)
	if err != nil {
		return nil, fmt.Errorf("net %w", err)
	}
	unlTable, err := NewTable(numberOfNodes, unl)
	if err != nil {
		return nil, fmt.Errorf("unl %w", err)
	}
	return &Tables{Net: netTable, UNL: unlTable}, nil
}

// SingleTables builds the default no-split topology.
func SingleTables(numberOfNodes uint32) *Tables {
	return &Tables{
		Net: SingleTable(numberOfNodes),
		UNL: SingleTable(numberOfNodes),
	}
}

// Provider yields the active topology version. [*Store] is the
// swappable implementation; [ProviderFunc] adapts functions that
// derive tables on demand.
type Provider interface {
	// Load returns the active topology version.
	Load() *Tables
}

// ProviderFunc adapts a function to [Provider].
type ProviderFunc func() *Tables

// Load implements [Provider].
func (fn ProviderFunc) Load() *Tables {
	return fn()
}

// Store holds the active [*Tables] version and supports atomic
// whole-topology replacement: a reader sees the topology entirely
// before or entirely after a swap, never a mixture.
//
// Construct with [NewStore].
type Store struct {
	// current is the active topology version.
	current atomic.Pointer[Tables]
}

// NewStore creates a [*Store] serving the given initial topology.
func NewStore(tables *Tables) *Store {
	store := &Store{}
	store.current.Store(tables)
	return store
}

// Load returns the active topology version.
func (s *Store) Load() *Tables {
	return s.current.Load()
}

// Swap atomically replaces the active topology version.
func (s *Store) Swap(tables *Tables) {
	s.current.Store(tables)
}
