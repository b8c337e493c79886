// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package static is a reference, in-memory topology.Cache and
// rules.ChainFetcher loaded from an HCL fixture file. It is not the
// production topology store (spec's Non-goals exclude persistence and
// distribution); it exists to drive the demo CLI and the coordinator's
// tests off one human-editable file.
package static

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"grimm.is/midonet/internal/config"
	"grimm.is/midonet/internal/errors"
	"grimm.is/midonet/internal/rules"
	"grimm.is/midonet/internal/topology"
)

// idFor derives a stable UUID from a fixture label, so the same fixture
// file always produces the same device/port/chain identities across runs.
func idFor(kind, label string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(kind+":"+label))
}

var namespace = uuid.MustParse("6a6f7573-6865-4d69-646f-4e657454534b")

// Topology is an in-memory topology.Cache backed by a loaded fixture.
// It is safe for concurrent use: ports and devices are immutable after
// Load, and the capability handles (MAC tables, routing tables, ARP
// caches) guard their own mutable state.
type Topology struct {
	ports       map[topology.PortID]*topology.Port
	bridges     map[topology.DeviceID]*topology.Bridge
	routers     map[topology.DeviceID]*topology.Router
	vlanBridges map[topology.DeviceID]*topology.VlanBridge
	chains      map[topology.ChainID]*rules.Chain

	portByLabel map[string]topology.PortID
}

// Load builds a Topology from a decoded fixture.
func Load(fx *config.TopologyFixture) (*Topology, error) {
	t := &Topology{
		ports:       make(map[topology.PortID]*topology.Port),
		bridges:     make(map[topology.DeviceID]*topology.Bridge),
		routers:     make(map[topology.DeviceID]*topology.Router),
		vlanBridges: make(map[topology.DeviceID]*topology.VlanBridge),
		chains:      make(map[topology.ChainID]*rules.Chain),
		portByLabel: make(map[string]topology.PortID),
	}

	for _, p := range fx.Ports {
		t.portByLabel[p.ID] = idFor("port", p.ID)
	}

	for _, cf := range fx.Chains {
		chain, err := buildChain(cf, t)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "chain %q", cf.ID)
		}
		t.chains[idFor("chain", cf.ID)] = chain
	}

	for _, bf := range fx.Bridges {
		t.bridges[idFor("device", bf.ID)] = &topology.Bridge{
			ID:             idFor("device", bf.ID),
			AdminUp:        true,
			InputFilter:    t.chainID(bf.InputFilter),
			OutputFilter:   t.chainID(bf.OutputFilter),
			FloodPortSetID: idFor("portset", bf.FloodPortSetID),
			MacTable:       newMacTable(),
			VLANPortMap:    map[uint16]topology.PortID{},
		}
	}

	for _, rf := range fx.Routers {
		router := &topology.Router{
			ID:            idFor("device", rf.ID),
			AdminUp:       true,
			InputFilter:   t.chainID(rf.InputFilter),
			OutputFilter:  t.chainID(rf.OutputFilter),
			PortAddresses: map[topology.PortID]topology.PortAddress{},
		}
		for _, pa := range rf.PortAddress {
			ip := net.ParseIP(pa.IP)
			mac, err := net.ParseMAC(pa.MAC)
			if err != nil {
				return nil, errors.Wrapf(err, errors.KindValidation, "router %q port %q mac", rf.ID, pa.Port)
			}
			router.PortAddresses[t.portID(pa.Port)] = topology.PortAddress{IP: ip, MAC: mac}
		}
		rt := newRoutingTable()
		for _, rr := range rf.Route {
			_, dest, err := net.ParseCIDR(rr.Destination)
			if err != nil {
				return nil, errors.Wrapf(err, errors.KindValidation, "router %q route %q", rf.ID, rr.Destination)
			}
			var nextHop net.IP
			if rr.NextHop != "" {
				nextHop = net.ParseIP(rr.NextHop)
			}
			rt.add(topology.Route{
				Destination: dest,
				NextHop:     nextHop,
				EgressPort:  t.portID(rr.EgressPort),
				Metric:      rr.Metric,
			})
		}
		router.Routes = rt
		router.Arp = newArpCache()
		t.routers[router.ID] = router
	}

	for _, vf := range fx.VlanBridges {
		vb := &topology.VlanBridge{
			ID:           idFor("device", vf.ID),
			AdminUp:      true,
			InputFilter:  t.chainID(vf.InputFilter),
			OutputFilter: t.chainID(vf.OutputFilter),
			TrunkPortID:  t.portID(vf.TrunkPort),
			PortVLANs:    map[topology.PortID]uint16{},
			MacTable:     newMacTable(),
		}
		for _, pv := range vf.PortVLAN {
			vb.PortVLANs[t.portID(pv.Port)] = uint16(pv.VLAN)
		}
		t.vlanBridges[vb.ID] = vb
	}

	for _, pf := range fx.Ports {
		port := &topology.Port{
			ID:             t.portID(pf.ID),
			DeviceID:       idFor("device", pf.Device),
			Exterior:       pf.Exterior,
			DatapathPortNo: uint32(pf.DatapathPortNo),
			InputFilter:    t.chainID(pf.InputFilter),
			OutputFilter:   t.chainID(pf.OutputFilter),
			PortGroups:     append([]string(nil), pf.PortGroups...),
			AdminUp:        pf.AdminUp,
		}
		if pf.Peer != "" {
			port.PeerID = t.portID(pf.Peer)
		}
		t.ports[port.ID] = port
	}

	return t, nil
}

// LoadFile decodes path as an HCL topology fixture and loads it.
func LoadFile(path string) (*Topology, error) {
	fx, err := config.LoadTopologyFixture(path)
	if err != nil {
		return nil, err
	}
	return Load(fx)
}

// PortByLabel resolves a fixture port label to its PortID, for callers
// (the demo CLI, tests) that only know ports by the name they were given
// in the fixture file.
func (t *Topology) PortByLabel(label string) (topology.PortID, bool) {
	id, ok := t.portByLabel[label]
	return id, ok
}

func (t *Topology) portID(label string) topology.PortID {
	if id, ok := t.portByLabel[label]; ok {
		return id
	}
	return idFor("port", label)
}

func (t *Topology) chainID(label string) topology.ChainID {
	if label == "" {
		return topology.ChainID{}
	}
	return idFor("chain", label)
}

func (t *Topology) Port(_ context.Context, id topology.PortID) (*topology.Port, bool) {
	p, ok := t.ports[id]
	return p, ok
}

func (t *Topology) Bridge(_ context.Context, id topology.DeviceID) (*topology.Bridge, bool) {
	b, ok := t.bridges[id]
	return b, ok
}

func (t *Topology) Router(_ context.Context, id topology.DeviceID) (*topology.Router, bool) {
	r, ok := t.routers[id]
	return r, ok
}

func (t *Topology) VlanBridge(_ context.Context, id topology.DeviceID) (*topology.VlanBridge, bool) {
	vb, ok := t.vlanBridges[id]
	return vb, ok
}

func (t *Topology) Chain(id topology.ChainID) (*rules.Chain, bool) {
	c, ok := t.chains[id]
	return c, ok
}

// macTable is the default MacLearningTable: a mutex-guarded map, grounded
// on the same "shared capability handle" shape topology.Bridge documents.
type macTable struct {
	mu    sync.RWMutex
	ports map[string]topology.PortID
}

func newMacTable() *macTable {
	return &macTable{ports: make(map[string]topology.PortID)}
}

func (t *macTable) Lookup(mac string) (topology.PortID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.ports[mac]
	return p, ok
}

func (t *macTable) Learn(mac string, port topology.PortID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ports[mac] = port
}

// routingTable is a linear longest-prefix-match RoutingTable. Fine for
// fixture-sized topologies; production sizing would want a trie.
type routingTable struct {
	mu     sync.RWMutex
	routes []topology.Route
}

func newRoutingTable() *routingTable {
	return &routingTable{}
}

func (t *routingTable) add(r topology.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, r)
}

func (t *routingTable) Lookup(dst net.IP) (topology.Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *topology.Route
	bestOnes := -1
	for i := range t.routes {
		r := &t.routes[i]
		if !r.Destination.Contains(dst) {
			continue
		}
		ones, _ := r.Destination.Mask.Size()
		if ones > bestOnes || (ones == bestOnes && best != nil && r.Metric < best.Metric) {
			best = r
			bestOnes = ones
		}
	}
	if best == nil {
		return topology.Route{}, false
	}
	return *best, true
}

// arpCache is a mutex-guarded ArpCache. RequestResolution is a no-op and
// never invokes cb: the fixture has no real ARP wire exchange to drive, and
// the coordinator only relies on the flow's temporary-drop expiration to
// retry, exactly as spec §4.4 expects of a miss. Entries appear only
// through Learn.
type arpCache struct {
	mu      sync.RWMutex
	entries map[string]net.HardwareAddr
}

func newArpCache() *arpCache {
	return &arpCache{entries: make(map[string]net.HardwareAddr)}
}

func arpKey(port topology.PortID, ip net.IP) string {
	return fmt.Sprintf("%s|%s", port, ip.String())
}

func (c *arpCache) Lookup(port topology.PortID, ip net.IP) (net.HardwareAddr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mac, ok := c.entries[arpKey(port, ip)]
	return mac, ok
}

func (c *arpCache) RequestResolution(port topology.PortID, ip net.IP, cb func()) {
	_ = port
	_ = ip
	_ = cb
}

// Learn records a resolved MAC, for tests and fixtures that want to seed
// the cache instead of waiting on resolution.
func (c *arpCache) Learn(port topology.PortID, ip net.IP, mac net.HardwareAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[arpKey(port, ip)] = mac
}
