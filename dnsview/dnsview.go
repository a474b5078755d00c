//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// DNS view of the node directory.
//

// Package dnsview serves a read-only DNS view of the registered
// nodes, so harness tooling can address simulated validators by
// name instead of hardcoding ports.
//
// Names follow the node-<index>.<zone> convention. A queries
// resolve to the simulation host address; SRV queries of the form
// _peer._tcp.node-<index>.<zone> (and _ws, _wsadmin, _rpc) carry
// the node's registered ports. The view never gates routing.
package dnsview

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/ledgersim/netsplit/directory"
)

// DefaultZone is the zone served when none is configured.
const DefaultZone = "sim."

// View implements [dns.Handler] on top of a [*directory.Directory].
//
// The zero value is not ready to use; set Directory first. A
// [*View] is safe for concurrent use.
type View struct {
	// Directory is the node registry to serve from.
	Directory *directory.Directory

	// Zone is the served zone, fully qualified. Empty means
	// [DefaultZone].
	Zone string

	// HostAddr is the address A records resolve to. Nil means
	// 127.0.0.1, where the harness runs its containers.
	HostAddr net.IP

	// Logger optionally emits one event per query. May be nil.
	Logger *slog.Logger
}

// ServeDNS implements [dns.Handler].
func (v *View) ServeDNS(rw dns.ResponseWriter, query *dns.Msg) {
	resp := &dns.Msg{}
	resp.SetReply(query)

	for _, q := range query.Question {
		rr := v.answer(q)
		if rr == nil {
			resp.Rcode = dns.RcodeNameError
			continue
		}
		resp.Answer = append(resp.Answer, rr)
	}

	if v.Logger != nil {
		v.Logger.Info("dnsQuery",
			slog.Int("questions", len(query.Question)),
			slog.Int("answers", len(resp.Answer)),
			slog.Int("rcode", resp.Rcode),
		)
	}
	_ = rw.WriteMsg(resp)
}

// answer resolves a single question, returning nil when the name
// is not part of the view.
func (v *View) answer(q dns.Question) dns.RR {
	switch q.Qtype {
	case dns.TypeA:
		return v.answerA(q)
	case dns.TypeSRV:
		return v.answerSRV(q)
	default:
		return nil
	}
}

// answerA resolves node-<index>.<zone> to the host address.
func (v *View) answerA(q dns.Question) dns.RR {
	if _, ok := v.nodeByName(q.Name); !ok {
		return nil
	}
	addr := v.HostAddr
	if addr == nil {
		addr = net.IPv4(127, 0, 0, 1)
	}
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   q.Name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    0,
		},
		A: addr,
	}
}

// answerSRV resolves _<service>._tcp.node-<index>.<zone> to the
// node's registered port for that service.
func (v *View) answerSRV(q dns.Question) dns.RR {
	service, rest, ok := splitService(q.Name)
	if !ok {
		return nil
	}
	node, ok := v.nodeByName(rest)
	if !ok {
		return nil
	}

	var port uint32
	switch service {
	case "peer":
		port = node.PeerPort
	case "ws":
		port = node.WsPublicPort
	case "wsadmin":
		port = node.WsAdminPort
	case "rpc":
		port = node.RpcPort
	default:
		return nil
	}
	if port == 0 {
		return nil
	}

	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   q.Name,
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    0,
		},
		Priority: 0,
		Weight:   0,
		Port:     uint16(port),
		Target:   rest,
	}
}

// zone returns the configured zone.
func (v *View) zone() string {
	if v.Zone != "" {
		return v.Zone
	}
	return DefaultZone
}

// NodeName returns the DNS name of the node with the given index.
func (v *View) NodeName(index uint32) string {
	return fmt.Sprintf("node-%d.%s", index, v.zone())
}

// nodeByName maps node-<index>.<zone> back to a directory entry.
func (v *View) nodeByName(name string) (directory.Node, bool) {
	label, ok := strings.CutSuffix(strings.ToLower(name), "."+v.zone())
	if !ok {
		return directory.Node{}, false
	}
	digits, ok := strings.CutPrefix(label, "node-")
	if !ok || strings.Contains(digits, ".") {
		return directory.Node{}, false
	}
	index, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return directory.Node{}, false
	}
	for _, node := range v.Directory.Nodes() {
		if node.Index == uint32(index) {
			return node, true
		}
	}
	return directory.Node{}, false
}

// splitService splits _<service>._tcp.<rest> names.
func splitService(name string) (service, rest string, ok bool) {
	if !strings.HasPrefix(name, "_") {
		return "", "", false
	}
	service, rest, found := strings.Cut(name[1:], "._tcp.")
	if !found || rest == "" {
		return "", "", false
	}
	return strings.ToLower(service), rest, true
}
