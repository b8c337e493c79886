// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package action

import "grimm.is/midonet/internal/wildcard"

// icmpErrorTypes is the set of ICMP types whose embedded-datagram payload
// (a "ICMP error") is eligible for SetKey translation.
var icmpErrorTypes = map[uint8]bool{
	3:  true, // Destination Unreachable
	11: true, // Time Exceeded
	12: true, // Parameter Problem
}

// Translate computes the ordered datapath action list that rewrites orig
// into modif, per the fixed ordering: Ethernet, network header, VLAN
// stack, ICMP error payload, transport ports. Action equality/deduplication
// is deliberately not performed.
func Translate(orig, modif *wildcard.Match) []DatapathAction {
	var actions []DatapathAction

	if ethChanged(orig, modif) {
		actions = append(actions, SetKeyAction(SetKeyValue{
			Kind:     KeyEthernet,
			Ethernet: ethernetKey(modif),
		}))
	}

	if networkChanged(orig, modif) {
		if modif.IsIPv6 {
			actions = append(actions, SetKeyAction(SetKeyValue{Kind: KeyIPv6, IPv6: ipv6Key(modif)}))
		} else {
			actions = append(actions, SetKeyAction(SetKeyValue{Kind: KeyIPv4, IPv4: ipv4Key(modif)}))
		}
	}

	actions = append(actions, vlanDiff(orig, modif)...)

	if icmpDataChanged(orig, modif) && icmpErrorTypes[modif.ICMPType] {
		actions = append(actions, SetKeyAction(SetKeyValue{
			Kind: KeyICMPError,
			ICMPError: &ICMPErrorKey{
				Type: modif.ICMPType,
				Code: modif.ICMPCode,
				Data: modif.ICMPData,
			},
		}))
	}

	if transportChanged(orig, modif) {
		proto := modif.IPProto
		if proto == 0 {
			proto = orig.IPProto
		}
		switch proto {
		case wildcard.IPProtoTCP:
			actions = append(actions, SetKeyAction(SetKeyValue{
				Kind: KeyTCP,
				TCP:  &TCPKey{Src: modif.TransportSrc, Dst: modif.TransportDst},
			}))
		case wildcard.IPProtoUDP:
			actions = append(actions, SetKeyAction(SetKeyValue{
				Kind: KeyUDP,
				UDP:  &UDPKey{Src: modif.TransportSrc, Dst: modif.TransportDst},
			}))
		}
		// ICMP id/seq are never synthesized as a SetKey action.
	}

	return actions
}

func ethChanged(orig, modif *wildcard.Match) bool {
	return !macEqualRaw(orig.EthSrc, modif.EthSrc) || !macEqualRaw(orig.EthDst, modif.EthDst)
}

func macEqualRaw(a, b []byte) bool {
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

func ethernetKey(m *wildcard.Match) *EthernetKey {
	var k EthernetKey
	copy(k.Src[:], m.EthSrc)
	copy(k.Dst[:], m.EthDst)
	return &k
}

func networkChanged(orig, modif *wildcard.Match) bool {
	if !orig.NetworkSrc.Equal(modif.NetworkSrc) || !orig.NetworkDst.Equal(modif.NetworkDst) {
		return true
	}
	return orig.IPTTL != modif.IPTTL
}

func ipv4Key(m *wildcard.Match) *IPv4Key {
	var k IPv4Key
	copy(k.Src[:], m.NetworkSrc.To4())
	copy(k.Dst[:], m.NetworkDst.To4())
	k.Proto = m.IPProto
	k.TOS = m.IPTOS
	k.TTL = m.IPTTL
	return &k
}

func ipv6Key(m *wildcard.Match) *IPv6Key {
	var k IPv6Key
	copy(k.Src[:], m.NetworkSrc.To16())
	copy(k.Dst[:], m.NetworkDst.To16())
	k.Proto = m.IPProto
	k.HopLimit = m.IPTTL
	return &k
}

func icmpDataChanged(orig, modif *wildcard.Match) bool {
	return string(orig.ICMPData) != string(modif.ICMPData) ||
		orig.ICMPType != modif.ICMPType || orig.ICMPCode != modif.ICMPCode
}

func transportChanged(orig, modif *wildcard.Match) bool {
	return orig.TransportSrc != modif.TransportSrc || orig.TransportDst != modif.TransportDst
}

// vlanDiff emits one PopVlan for each tag present in orig but absent from
// modif, then one PushVlan for each tag present in modif but absent from
// orig: all but the last (innermost, closest to the network header) use
// the 802.1ad provider-bridging tag protocol id, the innermost uses the
// standard 802.1Q id.
func vlanDiff(orig, modif *wildcard.Match) []DatapathAction {
	var actions []DatapathAction

	origSet := toVlanSet(orig.VLANStack)
	modifSet := toVlanSet(modif.VLANStack)

	for _, id := range orig.VLANStack {
		if !modifSet[id] {
			actions = append(actions, PopVlanAction())
		}
	}

	var toPush []uint16
	for _, id := range modif.VLANStack {
		if !origSet[id] {
			toPush = append(toPush, id)
		}
	}
	for i, id := range toPush {
		tpid := TPID8021AD
		if i == len(toPush)-1 {
			tpid = TPID8021Q
		}
		actions = append(actions, PushVlanAction(tpid, id))
	}

	return actions
}

func toVlanSet(stack []uint16) map[uint16]bool {
	s := make(map[uint16]bool, len(stack))
	for _, id := range stack {
		s[id] = true
	}
	return s
}
