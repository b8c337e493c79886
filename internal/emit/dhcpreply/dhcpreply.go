// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dhcpreply builds a DHCP OFFER frame in response to a decoded
// DISCOVER, for the "DHCP request hits a virtual router with a DHCP relay
// rule" scenario (spec §8 Scenario A). It only emits the OFFER; the
// following REQUEST/ACK exchange is a separate simulation.
package dhcpreply

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/insomniacslk/dhcp/dhcpv4"
)

// Offer describes the lease terms the router offers the requesting client.
type Offer struct {
	ClientIP  net.IP
	ServerIP  net.IP
	Router    net.IP
	Netmask   net.IPMask
	DNS       []net.IP
	LeaseTime uint32
}

// Build decodes discover (the raw DHCPv4 DISCOVER payload), constructs an
// OFFER via dhcpv4.NewReplyFromRequest, and serializes the whole
// Ethernet+IPv4+UDP+DHCPv4 reply frame addressed back to the requesting
// client's hardware address, broadcast at the IP layer since the client
// has no IP yet.
func Build(routerMAC, clientMAC net.HardwareAddr, discover []byte, offer Offer) ([]byte, error) {
	req, err := dhcpv4.FromBytes(discover)
	if err != nil {
		return nil, err
	}

	mods := []dhcpv4.Modifier{
		dhcpv4.WithMessageType(dhcpv4.MessageTypeOffer),
		dhcpv4.WithYourIP(offer.ClientIP),
		dhcpv4.WithServerIP(offer.ServerIP),
		dhcpv4.WithRouter(offer.Router),
		dhcpv4.WithLeaseTime(offer.LeaseTime),
	}
	if offer.Netmask != nil {
		mods = append(mods, dhcpv4.WithNetmask(offer.Netmask))
	}
	if len(offer.DNS) > 0 {
		mods = append(mods, dhcpv4.WithDNS(offer.DNS...))
	}

	reply, err := dhcpv4.NewReplyFromRequest(req, mods...)
	if err != nil {
		return nil, err
	}

	eth := layers.Ethernet{
		SrcMAC:       routerMAC,
		DstMAC:       clientMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    offer.ServerIP.To4(),
		DstIP:    net.IPv4bcast,
	}
	udp := layers.UDP{
		SrcPort: 67,
		DstPort: 68,
	}
	udp.SetNetworkLayerForChecksum(&ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(reply.ToBytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
