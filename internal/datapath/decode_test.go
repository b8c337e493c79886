// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"net"
	"testing"

	gpkt "github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/midonet/internal/wildcard"
)

func serialize(t *testing.T, layerList ...gpkt.SerializableLayer) []byte {
	t.Helper()
	buf := gpkt.NewSerializeBuffer()
	opts := gpkt.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gpkt.SerializeLayers(buf, opts, layerList...))
	return buf.Bytes()
}

func tcpFrame(t *testing.T, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, ttl uint8) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: ttl, Protocol: layers.IPProtocolTCP, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	tcp := &layers.TCP{SrcPort: 1234, DstPort: 443}
	tcp.SetNetworkLayerForChecksum(ip)
	return serialize(t, eth, ip, tcp, gpkt.Payload([]byte("hi")))
}

func TestDecode_TCPOverIPv4PopulatesCoreFields(t *testing.T) {
	srcMAC := net.HardwareAddr{0, 0, 0, 0, 0, 1}
	dstMAC := net.HardwareAddr{0, 0, 0, 0, 0, 2}
	srcIP := net.ParseIP("10.0.0.1")
	dstIP := net.ParseIP("10.0.0.2")
	frame := tcpFrame(t, srcMAC, dstMAC, srcIP, dstIP, 64)

	inPort := uuid.New()
	m, err := Decode(frame, inPort)
	require.NoError(t, err)

	assert.Equal(t, inPort, m.InputPort)
	assert.Equal(t, srcMAC, m.EthSrc)
	assert.Equal(t, dstMAC, m.EthDst)
	assert.Equal(t, wildcard.EtherTypeIPv4, m.EthType)
	assert.True(t, m.NetworkSrc.Equal(srcIP))
	assert.True(t, m.NetworkDst.Equal(dstIP))
	assert.Equal(t, wildcard.IPProtoTCP, m.IPProto)
	assert.Equal(t, uint8(64), m.IPTTL)
	assert.Equal(t, uint16(1234), m.TransportSrc)
	assert.Equal(t, uint16(443), m.TransportDst)
}

func TestDecode_VLANTaggedFramePopulatesStack(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeDot1Q,
	}
	dot1q := &layers.Dot1Q{VLANIdentifier: 42, Type: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.ParseIP("10.0.0.1").To4(), DstIP: net.ParseIP("10.0.0.2").To4()}
	udp := &layers.UDP{SrcPort: 100, DstPort: 200}
	udp.SetNetworkLayerForChecksum(ip)
	frame := serialize(t, eth, dot1q, ip, udp)

	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []uint16{42}, m.VLANStack)
}

func TestDecode_IPv6WithICMPv6PopulatesICMPFields(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   32,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(128, 0)} // echo request
	icmp.SetNetworkLayerForChecksum(ip)
	frame := serialize(t, eth, ip, icmp, gpkt.Payload([]byte{1, 2, 3, 4}))

	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, wildcard.EtherTypeIPv6, m.EthType)
	assert.True(t, m.NetworkSrc.Equal(net.ParseIP("fe80::1")))
	assert.Equal(t, uint8(32), m.IPTTL)
	assert.Equal(t, uint8(128), m.ICMPType)
	assert.Equal(t, uint8(0), m.ICMPCode)
}

func TestDecode_FirstFragmentSetsFragmentFirst(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 1}, DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2}, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.ParseIP("10.0.0.1").To4(), DstIP: net.ParseIP("10.0.0.2").To4(),
		Flags: layers.IPv4MoreFragments, FragOffset: 0,
	}
	frame := serialize(t, eth, ip, gpkt.Payload([]byte("xxxxxxxx")))

	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, wildcard.FragmentFirst, m.Fragment)
}

func TestDecode_LaterFragmentSetsFragmentLater(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 1}, DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2}, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.ParseIP("10.0.0.1").To4(), DstIP: net.ParseIP("10.0.0.2").To4(),
		FragOffset: 185,
	}
	frame := serialize(t, eth, ip, gpkt.Payload([]byte("xxxxxxxx")))

	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, wildcard.FragmentLater, m.Fragment)
}

func TestDecode_UnfragmentedPacketSetsFragmentNone(t *testing.T) {
	frame := tcpFrame(t, net.HardwareAddr{0, 0, 0, 0, 0, 1}, net.HardwareAddr{0, 0, 0, 0, 0, 2},
		net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 64)
	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, wildcard.FragmentNone, m.Fragment)
}

func TestDecode_TruncatedFrameStillReturnsWhatItCanRead(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 1}, DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2}, EthernetType: layers.EthernetTypeIPv4}
	frame := serialize(t, eth)
	m, err := Decode(frame, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, wildcard.EtherTypeIPv4, m.EthType)
}

func TestEthernetAddr_ParsesValidMAC(t *testing.T) {
	mac := EthernetAddr("00:11:22:33:44:55")
	require.NotNil(t, mac)
	assert.Equal(t, net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, mac)
}

func TestEthernetAddr_InvalidStringReturnsNil(t *testing.T) {
	assert.Nil(t, EthernetAddr("not-a-mac"))
}
