// SPDX-License-Identifier: GPL-3.0-or-later

package dnsview

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/wire"
)

// recorder captures the response written by [View.ServeDNS].
type recorder struct {
	msg *dns.Msg
}

func (r *recorder) WriteMsg(msg *dns.Msg) error {
	r.msg = msg
	return nil
}

func (r *recorder) LocalAddr() net.Addr       { return &net.UDPAddr{} }
func (r *recorder) RemoteAddr() net.Addr      { return &net.UDPAddr{} }
func (r *recorder) Write([]byte) (int, error) { return 0, nil }
func (r *recorder) Close() error              { return nil }
func (r *recorder) TsigStatus() error         { return nil }
func (r *recorder) TsigTimersOnly(bool)       {}
func (r *recorder) Hijack()                   {}

// newTestView registers two nodes and returns the view over them.
func newTestView(t *testing.T) *View {
	t.Helper()
	dir := &directory.Directory{}
	_, err := dir.Upsert(&wire.ValidatorNodeInfo{
		PeerPort:     60000,
		WsPublicPort: 61000,
		WsAdminPort:  62000,
		RpcPort:      63000,
	})
	require.NoError(t, err)
	_, err = dir.Upsert(&wire.ValidatorNodeInfo{PeerPort: 60001})
	require.NoError(t, err)
	return &View{Directory: dir}
}

// query runs one question through the view.
func query(view *View, name string, qtype uint16) *dns.Msg {
	q := &dns.Msg{}
	q.SetQuestion(name, qtype)
	rec := &recorder{}
	view.ServeDNS(rec, q)
	return rec.msg
}

func TestViewServeDNS(t *testing.T) {
	view := newTestView(t)

	t.Run("A for a registered node", func(t *testing.T) {
		resp := query(view, "node-0.sim.", dns.TypeA)
		require.Len(t, resp.Answer, 1)
		a, ok := resp.Answer[0].(*dns.A)
		require.True(t, ok)
		assert.True(t, a.A.Equal(net.IPv4(127, 0, 0, 1)))
	})

	t.Run("custom host address", func(t *testing.T) {
		view := newTestView(t)
		view.HostAddr = net.IPv4(10, 0, 0, 7)
		resp := query(view, "node-1.sim.", dns.TypeA)
		require.Len(t, resp.Answer, 1)
		assert.True(t, resp.Answer[0].(*dns.A).A.Equal(net.IPv4(10, 0, 0, 7)))
	})

	t.Run("SRV carries the registered peer port", func(t *testing.T) {
		resp := query(view, "_peer._tcp.node-0.sim.", dns.TypeSRV)
		require.Len(t, resp.Answer, 1)
		srv, ok := resp.Answer[0].(*dns.SRV)
		require.True(t, ok)
		assert.Equal(t, uint16(60000), srv.Port)
		assert.Equal(t, "node-0.sim.", srv.Target)
	})

	t.Run("SRV per service kind", func(t *testing.T) {
		for service, port := range map[string]uint16{
			"ws":      61000,
			"wsadmin": 62000,
			"rpc":     63000,
		} {
			resp := query(view, "_"+service+"._tcp.node-0.sim.", dns.TypeSRV)
			require.Len(t, resp.Answer, 1, service)
			assert.Equal(t, port, resp.Answer[0].(*dns.SRV).Port, service)
		}
	})

	t.Run("SRV for an unregistered port kind", func(t *testing.T) {
		// node-1 registered no rpc port.
		resp := query(view, "_rpc._tcp.node-1.sim.", dns.TypeSRV)
		assert.Empty(t, resp.Answer)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	})

	t.Run("unknown node is NXDOMAIN", func(t *testing.T) {
		resp := query(view, "node-7.sim.", dns.TypeA)
		assert.Empty(t, resp.Answer)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	})

	t.Run("foreign zone is NXDOMAIN", func(t *testing.T) {
		resp := query(view, "node-0.example.com.", dns.TypeA)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	})

	t.Run("unsupported qtype is NXDOMAIN", func(t *testing.T) {
		resp := query(view, "node-0.sim.", dns.TypeAAAA)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	})
}

func TestViewNodeName(t *testing.T) {
	view := &View{}
	assert.Equal(t, "node-3.sim.", view.NodeName(3))

	view.Zone = "validators.test."
	assert.Equal(t, "node-0.validators.test.", view.NodeName(0))
}
