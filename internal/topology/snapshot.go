// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package topology defines the immutable device snapshots the coordinator
// reads from the topology cache, and the Cache client interface itself.
// Snapshots are produced by the topology cache and are never mutated by the
// coordinator; it holds them only for the lifetime of one simulation.
package topology

import (
	"net"

	"github.com/google/uuid"
)

// DeviceID identifies a bridge, router, or VLAN-bridge.
type DeviceID = uuid.UUID

// PortID identifies a port on some device.
type PortID = uuid.UUID

// ChainID identifies a filter/NAT chain.
type ChainID = uuid.UUID

// PortSetID identifies a named collection of datapath ports used for
// broadcast/flood egress.
type PortSetID = uuid.UUID

// Port is an immutable port snapshot. Exterior ports face the datapath
// directly (a NIC, a tunnel endpoint); interior ports connect to a peer
// port on another device.
type Port struct {
	ID       PortID
	DeviceID DeviceID
	Exterior bool

	// DatapathPortNo is the kernel's numeric handle for this port, used
	// when building Output actions. Zero for interior ports.
	DatapathPortNo uint32

	// PeerID is the port this one is patched to, for interior ports.
	PeerID PortID

	InputFilter  ChainID
	OutputFilter ChainID

	// PortGroups lists the port-group memberships copied into the match on
	// exterior ingress.
	PortGroups []string

	// VLANID, if non-zero, is the access VLAN this bridge port maps to.
	VLANID uint16

	AdminUp bool
}

// HasInputFilter reports whether the port has a non-zero input chain.
func (p *Port) HasInputFilter() bool { return p.InputFilter != ChainID{} }

// HasOutputFilter reports whether the port has a non-zero output chain.
func (p *Port) HasOutputFilter() bool { return p.OutputFilter != ChainID{} }

// MacLearningTable is the capability handle a Bridge snapshot carries for
// its MAC-learning side effects. It is owned by the topology subsystem and
// is safe for concurrent use by many simulations.
type MacLearningTable interface {
	// Lookup returns the port a destination MAC was last learned on.
	Lookup(mac string) (PortID, bool)
	// Learn records that mac was seen arriving on port.
	Learn(mac string, port PortID)
}

// Bridge is an immutable L2 bridge snapshot.
type Bridge struct {
	ID      DeviceID
	AdminUp bool

	InputFilter  ChainID
	OutputFilter ChainID

	FloodPortSetID PortSetID

	MacTable MacLearningTable

	// VLANPortMap maps a VLAN id to the interior trunk/access port that
	// carries it, for VLAN-aware bridges.
	VLANPortMap map[uint16]PortID
}

// Route is one entry of a Router's routing table.
type Route struct {
	Destination *net.IPNet
	NextHop     net.IP // nil for a directly-connected / local route
	EgressPort  PortID
	Metric      int
}

// RoutingTable is the capability handle for longest-prefix-match lookups.
type RoutingTable interface {
	// Lookup returns the best matching route for dst, if any.
	Lookup(dst net.IP) (Route, bool)
}

// ArpCache is the capability handle for resolved next-hop MACs.
type ArpCache interface {
	// Lookup returns the resolved MAC for ip on the given port, if known.
	Lookup(port PortID, ip net.IP) (net.HardwareAddr, bool)
	// RequestResolution kicks off ARP resolution for ip on the given port
	// and registers cb to be invoked once resolution completes (or never,
	// if it never does — the caller relies on flow expiration to retry).
	RequestResolution(port PortID, ip net.IP, cb func())
}

// Router is an immutable L3 router snapshot.
type Router struct {
	ID      DeviceID
	AdminUp bool

	InputFilter  ChainID
	OutputFilter ChainID

	// PortAddresses maps a router port to its configured IP and MAC, used
	// to answer ARP-for-me and to rewrite the source MAC on forward.
	PortAddresses map[PortID]PortAddress

	Routes RoutingTable
	Arp    ArpCache
}

// PortAddress is a router port's configured L3/L2 identity.
type PortAddress struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// VlanBridge is an immutable VLAN-aware bridge snapshot that forks traffic
// between a local VLAN's port set and an 802.1Q/802.1ad trunk.
type VlanBridge struct {
	ID      DeviceID
	AdminUp bool

	InputFilter  ChainID
	OutputFilter ChainID

	TrunkPortID PortID
	PortVLANs   map[PortID]uint16
	MacTable    MacLearningTable
}

// Chains are fetched through a separate, narrower interface
// (rules.ChainFetcher) rather than topology.Cache: the Rule/Chain types
// need full access to a *wildcard.Match for condition evaluation, and
// wildcard already depends on topology for PortID, so Chain/Rule live in
// package rules to avoid an import cycle.
