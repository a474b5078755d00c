//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// HTTP inspection and re-partitioning surface.
//

// Package monitor exposes the router's state over HTTP for test
// harnesses and humans: registered nodes, the current config
// snapshot, verdict counters, per-pair verdict queries, and the
// re-partitioning endpoint that hot-swaps the partition tables.
package monitor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgersim/netsplit/config"
	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/router"
	"github.com/ledgersim/netsplit/topology"
)

// Monitor serves the inspection API.
//
// A [*Monitor] is safe for concurrent use as long as its fields
// are not modified after construction.
type Monitor struct {
	// Directory is the node registry.
	Directory *directory.Directory

	// Router is the decision engine.
	Router *router.Router

	// Topology is the swappable partition-table store.
	Topology *topology.Store

	// Generator produces config snapshots.
	Generator *config.Generator

	// Logger optionally emits one event per re-partition. May
	// be nil.
	Logger *slog.Logger
}

// Handler returns the HTTP handler serving the API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/nodes", m.listNodes).Methods(http.MethodGet)
	r.HandleFunc("/api/config", m.dumpConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/counters", m.listCounters).Methods(http.MethodGet)
	r.HandleFunc("/api/verdict/{from}/{to}", m.pairVerdict).Methods(http.MethodGet)
	r.HandleFunc("/api/partitions", m.repartition).Methods(http.MethodPost)
	return r
}

// nodeSummary is the published view of a node. Validation key
// material stays private to the registration contract.
type nodeSummary struct {
	Index        uint32 `json:"index"`
	PeerPort     uint32 `json:"peer_port"`
	WsPublicPort uint32 `json:"ws_public_port"`
	WsAdminPort  uint32 `json:"ws_admin_port"`
	RpcPort      uint32 `json:"rpc_port"`
	Status       string `json:"status"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := m.Directory.Nodes()
	out := make([]nodeSummary, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, nodeSummary{
			Index:        node.Index,
			PeerPort:     node.PeerPort,
			WsPublicPort: node.WsPublicPort,
			WsAdminPort:  node.WsAdminPort,
			RpcPort:      node.RpcPort,
			Status:       node.Status,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// configView mirrors the wire Config with JSON field names.
type configView struct {
	BasePortPeer    uint32     `json:"base_port_peer"`
	BasePortWs      uint32     `json:"base_port_ws"`
	BasePortWsAdmin uint32     `json:"base_port_ws_admin"`
	BasePortRpc     uint32     `json:"base_port_rpc"`
	NumberOfNodes   uint32     `json:"number_of_nodes"`
	NetPartitions   [][]uint32 `json:"net_partitions"`
	UnlPartitions   [][]uint32 `json:"unl_partitions"`
}

func (m *Monitor) dumpConfig(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.Generator.Snapshot()
	view := configView{
		BasePortPeer:    snapshot.BasePortPeer,
		BasePortWs:      snapshot.BasePortWs,
		BasePortWsAdmin: snapshot.BasePortWsAdmin,
		BasePortRpc:     snapshot.BasePortRpc,
		NumberOfNodes:   snapshot.NumberOfNodes,
	}
	for _, part := range snapshot.NetPartitions {
		view.NetPartitions = append(view.NetPartitions, part.Nodes)
	}
	for _, part := range snapshot.UnlPartitions {
		view.UnlPartitions = append(view.UnlPartitions, part.Nodes)
	}
	writeJSON(w, http.StatusOK, view)
}

func (m *Monitor) listCounters(w http.ResponseWriter, _ *http.Request) {
	counters := m.Router.Counters()
	writeJSON(w, http.StatusOK, map[string]uint64{
		"delivered":            counters.Delivered,
		"delayed":              counters.Delayed,
		"dropped_split":        counters.DroppedSplit,
		"dropped_unregistered": counters.DroppedUnregistered,
	})
}

// verdictView is the published form of a routing decision.
type verdictView struct {
	Action       string `json:"action"`
	SendAmount   uint32 `json:"send_amount"`
	Unregistered bool   `json:"unregistered"`
	NetSplit     bool   `json:"net_split"`
	TrustSplit   bool   `json:"trust_split"`
}

func (m *Monitor) pairVerdict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	from, errFrom := strconv.ParseUint(vars["from"], 10, 32)
	to, errTo := strconv.ParseUint(vars["to"], 10, 32)
	if errFrom != nil || errTo != nil {
		http.Error(w, "ports must be uint32", http.StatusBadRequest)
		return
	}
	verdict := m.Router.Decide(uint32(from), uint32(to))
	writeJSON(w, http.StatusOK, verdictView{
		Action:       verdict.Action.String(),
		SendAmount:   verdict.SendAmount,
		Unregistered: verdict.Unregistered,
		NetSplit:     verdict.NetSplit,
		TrustSplit:   verdict.TrustSplit,
	})
}

// repartitionRequest is the POST /api/partitions body.
type repartitionRequest struct {
	NumberOfNodes uint32     `json:"number_of_nodes"`
	Net           [][]uint32 `json:"net"`
	Unl           [][]uint32 `json:"unl"`
}

// repartition builds the new tables first and swaps only on
// success, so readers never observe a half-updated topology and a
// broken cover never serves requests.
func (m *Monitor) repartition(w http.ResponseWriter, r *http.Request) {
	var req repartitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tables, err := topology.NewTables(req.NumberOfNodes, req.Net, req.Unl)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, topology.ErrInvariant) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	m.Topology.Swap(tables)

	if m.Logger != nil {
		m.Logger.Info("repartition",
			slog.Uint64("numberOfNodes", uint64(req.NumberOfNodes)),
			slog.Int("netPartitions", len(req.Net)),
			slog.Int("unlPartitions", len(req.Unl)),
		)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
