// SPDX-License-Identifier: GPL-3.0-or-later

package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersim/netsplit/config"
	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/router"
	"github.com/ledgersim/netsplit/topology"
	"github.com/ledgersim/netsplit/wire"
)

// newTestMonitor wires a monitor over three registered nodes with a
// 2+1 network split.
func newTestMonitor(t *testing.T) (*Monitor, *httptest.Server) {
	t.Helper()

	dir := &directory.Directory{}
	for _, info := range []*wire.ValidatorNodeInfo{
		{PeerPort: 51235, Status: "active", ValidationSeed: "shouldnotleak"},
		{PeerPort: 51236, Status: "active"},
		{PeerPort: 51237, Status: "starting"},
	} {
		_, err := dir.Upsert(info)
		require.NoError(t, err)
	}

	tables, err := topology.NewTables(3,
		[][]uint32{{0, 1}, {2}},
		[][]uint32{{0, 1, 2}})
	require.NoError(t, err)
	store := topology.NewStore(tables)

	mon := &Monitor{
		Directory: dir,
		Router:    &router.Router{Directory: dir, Topology: store},
		Topology:  store,
		Generator: &config.Generator{
			Ports:     config.DefaultPorts,
			Directory: dir,
			Topology:  store,
		},
	}
	srv := httptest.NewServer(mon.Handler())
	t.Cleanup(srv.Close)
	return mon, srv
}

// getJSON decodes a GET response body into out and returns the status.
func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestMonitorListNodes(t *testing.T) {
	_, srv := newTestMonitor(t)

	var nodes []map[string]any
	status := getJSON(t, srv.URL+"/api/nodes", &nodes)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, nodes, 3)

	assert.Equal(t, float64(51235), nodes[0]["peer_port"])
	assert.Equal(t, "active", nodes[0]["status"])

	// Validation key material must not be published.
	_, leaked := nodes[0]["validation_seed"]
	assert.False(t, leaked)
}

func TestMonitorDumpConfig(t *testing.T) {
	_, srv := newTestMonitor(t)

	var view struct {
		BasePortPeer  uint32     `json:"base_port_peer"`
		NumberOfNodes uint32     `json:"number_of_nodes"`
		NetPartitions [][]uint32 `json:"net_partitions"`
		UnlPartitions [][]uint32 `json:"unl_partitions"`
	}
	status := getJSON(t, srv.URL+"/api/config", &view)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint32(60000), view.BasePortPeer)
	assert.Equal(t, uint32(3), view.NumberOfNodes)
	assert.Equal(t, [][]uint32{{0, 1}, {2}}, view.NetPartitions)
	assert.Equal(t, [][]uint32{{0, 1, 2}}, view.UnlPartitions)
}

func TestMonitorCounters(t *testing.T) {
	mon, srv := newTestMonitor(t)
	mon.Router.Decide(51235, 51236)
	mon.Router.Decide(51235, 51237)

	var counters map[string]uint64
	status := getJSON(t, srv.URL+"/api/counters", &counters)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(1), counters["delivered"])
	assert.Equal(t, uint64(1), counters["dropped_split"])
}

func TestMonitorPairVerdict(t *testing.T) {
	_, srv := newTestMonitor(t)

	t.Run("delivering pair", func(t *testing.T) {
		var view struct {
			Action     string `json:"action"`
			SendAmount uint32 `json:"send_amount"`
			NetSplit   bool   `json:"net_split"`
		}
		status := getJSON(t, srv.URL+"/api/verdict/51235/51236", &view)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "deliver", view.Action)
		assert.Equal(t, uint32(1), view.SendAmount)
		assert.False(t, view.NetSplit)
	})

	t.Run("split pair", func(t *testing.T) {
		var view struct {
			Action   string `json:"action"`
			NetSplit bool   `json:"net_split"`
		}
		status := getJSON(t, srv.URL+"/api/verdict/51235/51237", &view)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "drop", view.Action)
		assert.True(t, view.NetSplit)
	})

	t.Run("non-numeric port", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/verdict/abc/51236")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMonitorRepartition(t *testing.T) {
	t.Run("swap changes routing", func(t *testing.T) {
		mon, srv := newTestMonitor(t)

		// 51235 -> 51237 crosses the initial split.
		assert.Equal(t, router.ActionDrop, mon.Router.Decide(51235, 51237).Action)

		body := `{"number_of_nodes": 3, "net": [[0, 1, 2]], "unl": [[0, 1, 2]]}`
		resp, err := http.Post(srv.URL+"/api/partitions", "application/json",
			strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, router.ActionDeliver, mon.Router.Decide(51235, 51237).Action)
	})

	t.Run("broken cover is rejected and not applied", func(t *testing.T) {
		mon, srv := newTestMonitor(t)

		body := `{"number_of_nodes": 3, "net": [[0, 1]], "unl": [[0, 1, 2]]}`
		resp, err := http.Post(srv.URL+"/api/partitions", "application/json",
			strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// The previous topology is still serving.
		assert.Equal(t, router.ActionDeliver, mon.Router.Decide(51235, 51236).Action)
		assert.Equal(t, router.ActionDrop, mon.Router.Decide(51235, 51237).Action)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		_, srv := newTestMonitor(t)
		resp, err := http.Post(srv.URL+"/api/partitions", "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
