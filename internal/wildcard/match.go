// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wildcard implements the mutable match-key (WildcardMatch) the
// coordinator carries through a simulation: a set of header fields with
// independent presence and value, cheaply clonable, and diffable for
// datapath-action translation.
package wildcard

import (
	"net"

	"grimm.is/midonet/internal/topology"
)

// FieldMask identifies which fields of a Match are present. Presence is
// tracked independently of value so an unset field is distinguishable from
// a field explicitly set to its zero value.
type FieldMask uint32

const (
	FieldInputPort FieldMask = 1 << iota
	FieldEthSrc
	FieldEthDst
	FieldEthType
	FieldVLANStack
	FieldNetworkSrc
	FieldNetworkDst
	FieldIPProto
	FieldIPTOS
	FieldIPTTL
	FieldFragmentType
	FieldTransportSrc
	FieldTransportDst
	FieldICMPType
	FieldICMPCode
	FieldICMPData
	FieldPortGroups
)

// FragmentType is derived from IP header fragmentation fields.
type FragmentType int

const (
	FragmentNone FragmentType = iota
	FragmentFirst
	FragmentLater
)

// EtherType values the coordinator itself needs to reason about.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeIPv6 uint16 = 0x86DD
	EtherTypeARP  uint16 = 0x0806
)

// IP protocol numbers the coordinator itself needs to reason about.
const (
	IPProtoICMP   uint8 = 1
	IPProtoTCP    uint8 = 6
	IPProtoUDP    uint8 = 17
	IPProtoICMPv6 uint8 = 58
)

// Match is the mutable per-simulation match key. The zero value is an empty
// match (no fields present). Callers must use Clone before handing a Match
// to anything that outlives the current mutation, per the invariant that a
// match is never mutated after being recorded for diffing or installed as a
// flow.
type Match struct {
	set FieldMask

	InputPort topology.PortID

	EthSrc net.HardwareAddr
	EthDst net.HardwareAddr
	EthType uint16

	// VLANStack is ordered outermost-first; the last element is the tag
	// closest to the network header.
	VLANStack []uint16

	IsIPv6      bool
	NetworkSrc  net.IP
	NetworkDst  net.IP
	IPProto     uint8
	IPTOS       uint8
	IPTTL       uint8
	Fragment    FragmentType

	TransportSrc uint16
	TransportDst uint16

	ICMPType uint8
	ICMPCode uint8
	ICMPData []byte // payload of the original datagram, for ICMP errors

	PortGroups map[string]struct{}
}

// New returns an empty Match with no fields present.
func New() *Match {
	return &Match{}
}

// Has reports whether field f is present.
func (m *Match) Has(f FieldMask) bool {
	return m.set&f != 0
}

func (m *Match) setField(f FieldMask) {
	m.set |= f
}

// Clone returns a deep, independent copy in O(fields) time.
func (m *Match) Clone() *Match {
	c := &Match{set: m.set}
	c.InputPort = m.InputPort
	if m.EthSrc != nil {
		c.EthSrc = append(net.HardwareAddr(nil), m.EthSrc...)
	}
	if m.EthDst != nil {
		c.EthDst = append(net.HardwareAddr(nil), m.EthDst...)
	}
	c.EthType = m.EthType
	if m.VLANStack != nil {
		c.VLANStack = append([]uint16(nil), m.VLANStack...)
	}
	c.IsIPv6 = m.IsIPv6
	if m.NetworkSrc != nil {
		c.NetworkSrc = append(net.IP(nil), m.NetworkSrc...)
	}
	if m.NetworkDst != nil {
		c.NetworkDst = append(net.IP(nil), m.NetworkDst...)
	}
	c.IPProto = m.IPProto
	c.IPTOS = m.IPTOS
	c.IPTTL = m.IPTTL
	c.Fragment = m.Fragment
	c.TransportSrc = m.TransportSrc
	c.TransportDst = m.TransportDst
	c.ICMPType = m.ICMPType
	c.ICMPCode = m.ICMPCode
	if m.ICMPData != nil {
		c.ICMPData = append([]byte(nil), m.ICMPData...)
	}
	if m.PortGroups != nil {
		c.PortGroups = make(map[string]struct{}, len(m.PortGroups))
		for k := range m.PortGroups {
			c.PortGroups[k] = struct{}{}
		}
	}
	return c
}

// Equals reports whether the set of present fields and their values
// coincide between m and other.
func (m *Match) Equals(other *Match) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.set != other.set {
		return false
	}
	if m.Has(FieldInputPort) && m.InputPort != other.InputPort {
		return false
	}
	if m.Has(FieldEthSrc) && !macEqual(m.EthSrc, other.EthSrc) {
		return false
	}
	if m.Has(FieldEthDst) && !macEqual(m.EthDst, other.EthDst) {
		return false
	}
	if m.Has(FieldEthType) && m.EthType != other.EthType {
		return false
	}
	if m.Has(FieldVLANStack) && !vlanEqual(m.VLANStack, other.VLANStack) {
		return false
	}
	if m.Has(FieldNetworkSrc) && (m.IsIPv6 != other.IsIPv6 || !m.NetworkSrc.Equal(other.NetworkSrc)) {
		return false
	}
	if m.Has(FieldNetworkDst) && (m.IsIPv6 != other.IsIPv6 || !m.NetworkDst.Equal(other.NetworkDst)) {
		return false
	}
	if m.Has(FieldIPProto) && m.IPProto != other.IPProto {
		return false
	}
	if m.Has(FieldIPTOS) && m.IPTOS != other.IPTOS {
		return false
	}
	if m.Has(FieldIPTTL) && m.IPTTL != other.IPTTL {
		return false
	}
	if m.Has(FieldFragmentType) && m.Fragment != other.Fragment {
		return false
	}
	if m.Has(FieldTransportSrc) && m.TransportSrc != other.TransportSrc {
		return false
	}
	if m.Has(FieldTransportDst) && m.TransportDst != other.TransportDst {
		return false
	}
	if m.Has(FieldICMPType) && m.ICMPType != other.ICMPType {
		return false
	}
	if m.Has(FieldICMPCode) && m.ICMPCode != other.ICMPCode {
		return false
	}
	if m.Has(FieldICMPData) && string(m.ICMPData) != string(other.ICMPData) {
		return false
	}
	if m.Has(FieldPortGroups) && !portGroupsEqual(m.PortGroups, other.PortGroups) {
		return false
	}
	return true
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func vlanEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func portGroupsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// --- setters ---

func (m *Match) SetInputPort(p topology.PortID) {
	m.InputPort = p
	m.setField(FieldInputPort)
}

func (m *Match) SetEthernet(src, dst net.HardwareAddr) {
	m.EthSrc = src
	m.EthDst = dst
	m.setField(FieldEthSrc)
	m.setField(FieldEthDst)
}

func (m *Match) SetEthType(t uint16) {
	m.EthType = t
	m.setField(FieldEthType)
}

// SetVLANStack replaces the VLAN tag stack wholesale.
func (m *Match) SetVLANStack(stack []uint16) {
	m.VLANStack = append([]uint16(nil), stack...)
	m.setField(FieldVLANStack)
}

// PushVLAN appends a VLAN tag as the new innermost tag.
func (m *Match) PushVLAN(id uint16) {
	m.VLANStack = append(m.VLANStack, id)
	m.setField(FieldVLANStack)
}

// PopVLAN removes the innermost VLAN tag, if any.
func (m *Match) PopVLAN() {
	if len(m.VLANStack) == 0 {
		return
	}
	m.VLANStack = m.VLANStack[:len(m.VLANStack)-1]
	m.setField(FieldVLANStack)
}

func (m *Match) SetNetwork(isIPv6 bool, src, dst net.IP) {
	m.IsIPv6 = isIPv6
	m.NetworkSrc = src
	m.NetworkDst = dst
	m.setField(FieldNetworkSrc)
	m.setField(FieldNetworkDst)
}

func (m *Match) SetIPProto(p uint8) {
	m.IPProto = p
	m.setField(FieldIPProto)
}

func (m *Match) SetIPTOS(tos uint8) {
	m.IPTOS = tos
	m.setField(FieldIPTOS)
}

func (m *Match) SetIPTTL(ttl uint8) {
	m.IPTTL = ttl
	m.setField(FieldIPTTL)
}

func (m *Match) SetFragmentType(f FragmentType) {
	m.Fragment = f
	m.setField(FieldFragmentType)
}

func (m *Match) SetTransport(src, dst uint16) {
	m.TransportSrc = src
	m.TransportDst = dst
	m.setField(FieldTransportSrc)
	m.setField(FieldTransportDst)
}

func (m *Match) SetICMP(typ, code uint8) {
	m.ICMPType = typ
	m.ICMPCode = code
	m.setField(FieldICMPType)
	m.setField(FieldICMPCode)
}

func (m *Match) SetICMPData(data []byte) {
	m.ICMPData = data
	m.setField(FieldICMPData)
}

func (m *Match) AddPortGroup(id string) {
	if m.PortGroups == nil {
		m.PortGroups = make(map[string]struct{})
	}
	m.PortGroups[id] = struct{}{}
	m.setField(FieldPortGroups)
}

func (m *Match) HasPortGroup(id string) bool {
	if m.PortGroups == nil {
		return false
	}
	_, ok := m.PortGroups[id]
	return ok
}

// IsBroadcast reports whether EthDst is the L2 broadcast address.
func (m *Match) IsBroadcast() bool {
	return m.Has(FieldEthDst) && macEqual(m.EthDst, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
}

// IsMulticast reports whether EthDst has the multicast bit set.
func (m *Match) IsMulticast() bool {
	if !m.Has(FieldEthDst) || len(m.EthDst) == 0 {
		return false
	}
	return m.EthDst[0]&0x01 == 1
}
