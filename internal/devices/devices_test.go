// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package devices

import (
	"net"

	"github.com/google/uuid"

	"grimm.is/midonet/internal/conncache/memcache"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// fakeMacTable is a minimal topology.MacLearningTable for device tests.
type fakeMacTable struct {
	learned map[string]topology.PortID
}

func newFakeMacTable() *fakeMacTable {
	return &fakeMacTable{learned: make(map[string]topology.PortID)}
}

func (t *fakeMacTable) Lookup(mac string) (topology.PortID, bool) {
	p, ok := t.learned[mac]
	return p, ok
}

func (t *fakeMacTable) Learn(mac string, port topology.PortID) {
	t.learned[mac] = port
}

// fakeRoutingTable resolves to a single fixed route regardless of destination.
type fakeRoutingTable struct {
	route topology.Route
	ok    bool
}

func (r fakeRoutingTable) Lookup(dst net.IP) (topology.Route, bool) { return r.route, r.ok }

// fakeArpCache resolves a fixed set of IP->MAC entries and records
// resolution requests it was asked to start, including the retry callback
// so tests can fire it and assert what happens when ARP resolves.
type fakeArpCache struct {
	resolved   map[string]net.HardwareAddr
	requested  []net.IP
	resolveCbs []func()
}

func newFakeArpCache() *fakeArpCache {
	return &fakeArpCache{resolved: make(map[string]net.HardwareAddr)}
}

func (a *fakeArpCache) Lookup(port topology.PortID, ip net.IP) (net.HardwareAddr, bool) {
	mac, ok := a.resolved[ip.String()]
	return mac, ok
}

func (a *fakeArpCache) RequestResolution(port topology.PortID, ip net.IP, cb func()) {
	a.requested = append(a.requested, ip)
	a.resolveCbs = append(a.resolveCbs, cb)
}

func newMatchWithEthDst(dst net.HardwareAddr) *wildcard.Match {
	m := wildcard.New()
	m.SetEthernet(net.HardwareAddr{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}, dst)
	return m
}

func newCtx(m *wildcard.Match) *packetctx.Context {
	return packetctx.New(m, memcache.New(), true, nil)
}

var (
	mac1 = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	mac2 = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func newPortID() topology.PortID { return uuid.New() }
