// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package icmpreply builds the ICMP error replies the Router processor and
// the fragmentation policy emit: Time Exceeded, Destination Unreachable,
// and Fragmentation Needed. No Parameter Problem builder is provided.
package icmpreply

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	typeDestUnreachable = 3
	typeTimeExceeded    = 11

	codeNetUnreachable  = 0
	codeFragNeeded      = 4
	codeTTLExceeded     = 0
)

// embeddedDatagram returns the IP header plus 8 bytes of payload from the
// original datagram, per RFC 792's ICMP error convention.
func embeddedDatagram(originalIPHeaderAndPayload []byte) []byte {
	n := len(originalIPHeaderAndPayload)
	if n > 28 {
		n = 28
	}
	return originalIPHeaderAndPayload[:n]
}

func build(routerMAC, dstMAC net.HardwareAddr, routerIP, dstIP net.IP, icmpType, icmpCode uint8, originalDatagram []byte) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       routerMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    routerIP.To4(),
		DstIP:    dstIP.To4(),
	}
	icmp := layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(icmpType, icmpCode),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &icmp, gopacket.Payload(embeddedDatagram(originalDatagram))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TimeExceeded builds an ICMP Time-Exceeded reply (TTL decremented to 0 in
// the Router, spec §4.4 step 3).
func TimeExceeded(routerMAC, dstMAC net.HardwareAddr, routerIP, dstIP net.IP, originalDatagram []byte) ([]byte, error) {
	return build(routerMAC, dstMAC, routerIP, dstIP, typeTimeExceeded, codeTTLExceeded, originalDatagram)
}

// DestNetUnreachable builds an ICMP Destination-Unreachable (net) reply
// (no matching route, spec §4.4 step 4).
func DestNetUnreachable(routerMAC, dstMAC net.HardwareAddr, routerIP, dstIP net.IP, originalDatagram []byte) ([]byte, error) {
	return build(routerMAC, dstMAC, routerIP, dstIP, typeDestUnreachable, codeNetUnreachable, originalDatagram)
}

// FragmentationNeeded builds an ICMP Destination-Unreachable
// (fragmentation-needed) reply for a First-fragment IPv4 packet at an
// exterior ingress (spec §4.4 Fragmentation policy).
func FragmentationNeeded(routerMAC, dstMAC net.HardwareAddr, routerIP, dstIP net.IP, originalDatagram []byte) ([]byte, error) {
	return build(routerMAC, dstMAC, routerIP, dstIP, typeDestUnreachable, codeFragNeeded, originalDatagram)
}
