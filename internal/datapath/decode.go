// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package datapath bridges raw Ethernet frames to and from
// *wildcard.Match, the shape the coordinator actually reasons about. It is
// not a datapath driver: netlink encoding of the resulting DatapathAction
// list onto a real kernel flow table is a collaborator's job, same as
// emit.Emitter.
package datapath

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// Decode parses a raw Ethernet frame into a *wildcard.Match populating
// every field the decoder can read off the wire. inputPort is recorded as
// the match's FieldInputPort. An error is returned only when not even the
// Ethernet header decodes; a malformed inner layer leaves its fields unset.
func Decode(frame []byte, inputPort topology.PortID) (*wildcard.Match, error) {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	m := wildcard.New()
	m.SetInputPort(inputPort)

	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		if err := packet.ErrorLayer(); err != nil {
			return nil, err.Error()
		}
		return m, nil
	}
	m.SetEthernet(eth.SrcMAC, eth.DstMAC)
	m.SetEthType(uint16(eth.EthernetType))

	if dot1q := packet.Layer(layers.LayerTypeDot1Q); dot1q != nil {
		decodeVLANStack(packet, m)
	}

	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		decodeIPv4(packet, m)
	case layers.EthernetTypeIPv6:
		decodeIPv6(packet, m)
	}

	decodeTransport(packet, m)

	return m, nil
}

func decodeVLANStack(packet gopacket.Packet, m *wildcard.Match) {
	var stack []uint16
	for _, l := range packet.Layers() {
		if dot1q, ok := l.(*layers.Dot1Q); ok {
			stack = append(stack, dot1q.VLANIdentifier)
		}
	}
	if len(stack) > 0 {
		m.SetVLANStack(stack)
	}
}

func decodeIPv4(packet gopacket.Packet, m *wildcard.Match) {
	ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return
	}
	m.SetNetwork(false, ip.SrcIP, ip.DstIP)
	m.SetIPProto(uint8(ip.Protocol))
	m.SetIPTOS(ip.TOS)
	m.SetIPTTL(ip.TTL)
	m.SetFragmentType(fragmentType(ip.Flags, ip.FragOffset))

	if ip.Protocol == layers.IPProtocolICMPv4 {
		if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
			m.SetICMP(uint8(icmp.TypeCode.Type()), uint8(icmp.TypeCode.Code()))
			m.SetICMPData(icmp.Payload)
		}
	}
}

func decodeIPv6(packet gopacket.Packet, m *wildcard.Match) {
	ip, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return
	}
	m.SetNetwork(true, ip.SrcIP, ip.DstIP)
	m.SetIPProto(uint8(ip.NextHeader))
	m.SetIPTTL(ip.HopLimit)

	if ip.NextHeader == layers.IPProtocolICMPv6 {
		if icmp, ok := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6); ok {
			m.SetICMP(uint8(icmp.TypeCode.Type()), uint8(icmp.TypeCode.Code()))
			m.SetICMPData(icmp.Payload)
		}
	}
}

func decodeTransport(packet gopacket.Packet, m *wildcard.Match) {
	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		m.SetTransport(uint16(tcp.SrcPort), uint16(tcp.DstPort))
		return
	}
	if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		m.SetTransport(uint16(udp.SrcPort), uint16(udp.DstPort))
	}
}

// fragmentType derives the spec's three-valued fragment state from the
// IPv4 flags/offset the same way the original datapath does: offset zero
// and MoreFragments set is the first fragment, nonzero offset is a later
// one, anything else carries no fragmentation.
func fragmentType(flags layers.IPv4Flag, fragOffset uint16) wildcard.FragmentType {
	switch {
	case fragOffset != 0:
		return wildcard.FragmentLater
	case flags&layers.IPv4MoreFragments != 0:
		return wildcard.FragmentFirst
	default:
		return wildcard.FragmentNone
	}
}

// EthernetAddr is a convenience conversion used by callers building a Match
// by hand (tests, CLI) rather than decoding a frame.
func EthernetAddr(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil
	}
	return mac
}
