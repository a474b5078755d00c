//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Per-packet admit/drop decision engine.
//

// Package router decides, per packet, whether delivery may occur
// under the simulated topology. The decision is a pure function of
// the current node directory and partition tables: it performs no
// I/O and never moves the payload itself.
package router

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/topology"
	"github.com/ledgersim/netsplit/wire"
)

// Action is the verdict code carried in a [wire.PacketAck].
type Action uint32

const (
	// ActionDeliver admits the packet: the caller should
	// transmit it SendAmount times.
	ActionDeliver = Action(0)

	// ActionDrop rejects the packet: no transport path exists
	// between the endpoints, or an endpoint is unknown.
	ActionDrop = Action(1)

	// ActionDelay admits the packet but asks the caller to apply
	// its configured delay before transmitting.
	ActionDelay = Action(2)
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionDeliver:
		return "deliver"
	case ActionDrop:
		return "drop"
	case ActionDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Verdict is the full routing decision, a superset of what fits in
// the ack: the trust facts are advisory and surfaced out of band.
type Verdict struct {
	// Action is the verdict code.
	Action Action

	// SendAmount is how many times the caller should transmit.
	SendAmount uint32

	// Unregistered is true when either endpoint is unknown.
	Unregistered bool

	// NetSplit is true when the endpoints sit in different
	// network partitions.
	NetSplit bool

	// TrustSplit is true when the endpoints sit in different
	// UNL partitions. Advisory: it never gates delivery.
	TrustSplit bool
}

// Counters are the cumulative per-action totals since start.
type Counters struct {
	// Delivered counts admitted packets.
	Delivered uint64

	// Delayed counts admitted-with-delay packets.
	Delayed uint64

	// DroppedSplit counts packets dropped by partition mismatch.
	DroppedSplit uint64

	// DroppedUnregistered counts packets referencing unknown
	// endpoints.
	DroppedUnregistered uint64
}

// Router is the decision engine. It borrows read access to the
// directory and the topology store; it owns no node state.
//
// A [*Router] is safe for concurrent use as long as its fields are
// not modified after construction.
type Router struct {
	// Directory resolves peer ports to node indices.
	Directory *directory.Directory

	// Topology yields the active partition tables.
	Topology topology.Provider

	// Delay optionally selects deliverable sender/receiver pairs
	// (by peer port) whose traffic the caller should delay. When
	// nil, no packet is ever delayed.
	Delay func(fromPort, toPort uint32) bool

	// Logger optionally emits one structured event per decision.
	Logger *slog.Logger

	delivered           atomic.Uint64
	delayed             atomic.Uint64
	droppedSplit        atomic.Uint64
	droppedUnregistered atomic.Uint64
}

// Decide resolves the verdict for a sender/receiver pair.
//
// The topology version is loaded once, so every decision sees the
// tables entirely before or entirely after a concurrent swap.
func (r *Router) Decide(fromPort, toPort uint32) Verdict {
	from, okFrom := r.Directory.Lookup(fromPort)
	to, okTo := r.Directory.Lookup(toPort)
	if !okFrom || !okTo {
		r.droppedUnregistered.Add(1)
		return Verdict{Action: ActionDrop, Unregistered: true}
	}

	tables := r.Topology.Load()
	netFrom := tables.Net.Resolve(from.Index)
	netTo := tables.Net.Resolve(to.Index)
	if netFrom == topology.NoPartition || netTo == topology.NoPartition {
		// Registered after the tables were built: no partition
		// assignment yet, hence no transport path.
		r.droppedUnregistered.Add(1)
		return Verdict{Action: ActionDrop, Unregistered: true}
	}

	trustSplit := tables.UNL.Resolve(from.Index) != tables.UNL.Resolve(to.Index)
	if netFrom != netTo {
		r.droppedSplit.Add(1)
		return Verdict{Action: ActionDrop, NetSplit: true, TrustSplit: trustSplit}
	}

	if r.Delay != nil && r.Delay(fromPort, toPort) {
		r.delayed.Add(1)
		return Verdict{Action: ActionDelay, SendAmount: 1, TrustSplit: trustSplit}
	}

	r.delivered.Add(1)
	return Verdict{Action: ActionDeliver, SendAmount: 1, TrustSplit: trustSplit}
}

// SendPacket resolves the verdict for pkt and builds the ack. The
// payload is echoed unchanged whenever the packet is admitted.
func (r *Router) SendPacket(ctx context.Context, pkt *wire.Packet) *wire.PacketAck {
	verdict := r.Decide(pkt.FromPort, pkt.ToPort)

	ack := &wire.PacketAck{
		Action:     uint32(verdict.Action),
		SendAmount: verdict.SendAmount,
	}
	if verdict.Action != ActionDrop {
		ack.Data = pkt.Data
	}

	if r.Logger != nil {
		r.Logger.InfoContext(
			ctx,
			"sendPacket",
			slog.Uint64("fromPort", uint64(pkt.FromPort)),
			slog.Uint64("toPort", uint64(pkt.ToPort)),
			slog.String("action", verdict.Action.String()),
			slog.Uint64("sendAmount", uint64(verdict.SendAmount)),
			slog.Bool("unregistered", verdict.Unregistered),
			slog.Bool("netSplit", verdict.NetSplit),
			slog.Bool("trustSplit", verdict.TrustSplit),
		)
	}
	return ack
}

// Counters returns the cumulative per-action totals.
func (r *Router) Counters() Counters {
	return Counters{
		Delivered:           r.delivered.Load(),
		Delayed:             r.delayed.Load(),
		DroppedSplit:        r.droppedSplit.Load(),
		DroppedUnregistered: r.droppedUnregistered.Load(),
	}
}
