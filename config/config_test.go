// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/topology"
	"github.com/ledgersim/netsplit/wire"
)

func TestGeneratorDefaultTopology(t *testing.T) {
	dir := &directory.Directory{}
	for port := uint32(60000); port < 60003; port++ {
		_, err := dir.Upsert(&wire.ValidatorNodeInfo{PeerPort: port})
		require.NoError(t, err)
	}

	gen := &Generator{Ports: DefaultPorts, Directory: dir}
	snapshot := gen.Snapshot()

	assert.Equal(t, uint32(60000), snapshot.BasePortPeer)
	assert.Equal(t, uint32(61000), snapshot.BasePortWs)
	assert.Equal(t, uint32(62000), snapshot.BasePortWsAdmin)
	assert.Equal(t, uint32(63000), snapshot.BasePortRpc)
	assert.Equal(t, uint32(3), snapshot.NumberOfNodes)

	require.Len(t, snapshot.NetPartitions, 1)
	assert.Equal(t, []uint32{0, 1, 2}, snapshot.NetPartitions[0].Nodes)
	require.Len(t, snapshot.UnlPartitions, 1)
	assert.Equal(t, []uint32{0, 1, 2}, snapshot.UnlPartitions[0].Nodes)
}

func TestGeneratorFixedNodeCount(t *testing.T) {
	gen := &Generator{Ports: DefaultPorts, NumberOfNodes: 5}
	snapshot := gen.Snapshot()
	assert.Equal(t, uint32(5), snapshot.NumberOfNodes)
	require.Len(t, snapshot.NetPartitions, 1)
	assert.Len(t, snapshot.NetPartitions[0].Nodes, 5)
}

func TestGeneratorExplicitTopology(t *testing.T) {
	tables, err := topology.NewTables(3,
		[][]uint32{{0, 1}, {2}},
		[][]uint32{{0}, {1, 2}})
	require.NoError(t, err)

	gen := &Generator{
		Ports:    DefaultPorts,
		Topology: topology.NewStore(tables),
	}
	snapshot := gen.Snapshot()

	assert.Equal(t, uint32(3), snapshot.NumberOfNodes)
	require.Len(t, snapshot.NetPartitions, 2)
	assert.Equal(t, []uint32{0, 1}, snapshot.NetPartitions[0].Nodes)
	assert.Equal(t, []uint32{2}, snapshot.NetPartitions[1].Nodes)
	require.Len(t, snapshot.UnlPartitions, 2)
	assert.Equal(t, []uint32{0}, snapshot.UnlPartitions[0].Nodes)
}

// TestGeneratorSnapshotsAreIndependent checks that a snapshot
// handed out before a re-partition keeps its topology view.
func TestGeneratorSnapshotsAreIndependent(t *testing.T) {
	store := topology.NewStore(topology.SingleTables(3))
	gen := &Generator{Ports: DefaultPorts, Topology: store}

	before := gen.Snapshot()
	require.Len(t, before.NetPartitions, 1)

	tables, err := topology.NewTables(3,
		[][]uint32{{0}, {1}, {2}},
		[][]uint32{{0, 1, 2}})
	require.NoError(t, err)
	store.Swap(tables)

	after := gen.Snapshot()
	assert.Len(t, before.NetPartitions, 1)
	assert.Len(t, after.NetPartitions, 3)
}
