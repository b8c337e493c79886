// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package action defines the two action vocabularies the coordinator deals
// in: DeviceAction, the polymorphic output of a device processor, and
// DatapathAction, the wire-shaped instruction list a SimulationResult
// carries for the datapath to install or run once. Netlink encoding of
// DatapathAction is a collaborator's job; this package only fixes the
// shape and the orig/modif match diff that produces it.
package action

import "fmt"

// DatapathActionTag identifies the kind of datapath instruction.
type DatapathActionTag int

const (
	ActOutput DatapathActionTag = iota
	ActPopVlan
	ActPushVlan
	ActSetKey
)

// SetKeyKind identifies which header SetKey rewrites.
type SetKeyKind int

const (
	KeyEthernet SetKeyKind = iota
	KeyIPv4
	KeyIPv6
	KeyTCP
	KeyUDP
	KeyICMPError
	KeyTunnel
)

// EthernetKey rewrites L2 source/destination.
type EthernetKey struct {
	Src, Dst [6]byte
}

// IPv4Key rewrites IPv4 header fields.
type IPv4Key struct {
	Src, Dst [4]byte
	Proto    uint8
	TOS      uint8
	TTL      uint8
}

// IPv6Key rewrites IPv6 header fields.
type IPv6Key struct {
	Src, Dst [16]byte
	Proto    uint8
	HopLimit uint8
}

// TCPKey rewrites the TCP source/destination ports.
type TCPKey struct {
	Src, Dst uint16
}

// UDPKey rewrites the UDP source/destination ports.
type UDPKey struct {
	Src, Dst uint16
}

// ICMPErrorKey rewrites an ICMP error's type/code/embedded-datagram.
type ICMPErrorKey struct {
	Type uint8
	Code uint8
	Data []byte
}

// TunnelKey sets the tunnel (VTEP) encapsulation key; populated by a
// collaborator when a port resolves to a tunnel egress. The coordinator
// itself never constructs one — it is carried here only so the action
// vocabulary is complete per spec.
type TunnelKey struct {
	ID  uint64
	Dst [4]byte
}

// SetKeyValue is a tagged union of the header SetKey can rewrite.
type SetKeyValue struct {
	Kind      SetKeyKind
	Ethernet  *EthernetKey
	IPv4      *IPv4Key
	IPv6      *IPv6Key
	TCP       *TCPKey
	UDP       *UDPKey
	ICMPError *ICMPErrorKey
	Tunnel    *TunnelKey
}

// PushVlanParams is the tag protocol id and tag-control-info of a PushVlan.
type PushVlanParams struct {
	TPID uint16
	TCI  uint16
}

// OutputTarget names where an Output action sends the packet.
type OutputTarget struct {
	PortNo    uint32
	IsPortSet bool
	PortSetID string
}

// DatapathAction is one instruction of the ordered action list a
// SimulationResult carries.
type DatapathAction struct {
	Tag      DatapathActionTag
	Output   OutputTarget
	PushVlan PushVlanParams
	Key      SetKeyValue
}

func OutputAction(portNo uint32) DatapathAction {
	return DatapathAction{Tag: ActOutput, Output: OutputTarget{PortNo: portNo}}
}

func OutputPortSetAction(portSetID string) DatapathAction {
	return DatapathAction{Tag: ActOutput, Output: OutputTarget{IsPortSet: true, PortSetID: portSetID}}
}

func PopVlanAction() DatapathAction {
	return DatapathAction{Tag: ActPopVlan}
}

// 802.1Q (customer tag) and 802.1ad (provider/service tag) ethertypes.
const (
	TPID8021Q  uint16 = 0x8100
	TPID8021AD uint16 = 0x88A8
)

// VlanPresentBit is OR'd into the low 12 bits of a VLAN id to form the TCI,
// per the datapath wire convention.
const VlanPresentBit uint16 = 0x1000

func PushVlanAction(tpid uint16, vlanID uint16) DatapathAction {
	return DatapathAction{
		Tag:      ActPushVlan,
		PushVlan: PushVlanParams{TPID: tpid, TCI: (vlanID & 0x0FFF) | VlanPresentBit},
	}
}

func SetKeyAction(key SetKeyValue) DatapathAction {
	return DatapathAction{Tag: ActSetKey, Key: key}
}

func (a DatapathAction) String() string {
	switch a.Tag {
	case ActOutput:
		if a.Output.IsPortSet {
			return fmt.Sprintf("Output(portset=%s)", a.Output.PortSetID)
		}
		return fmt.Sprintf("Output(%d)", a.Output.PortNo)
	case ActPopVlan:
		return "PopVlan"
	case ActPushVlan:
		return fmt.Sprintf("PushVlan(tpid=0x%04x, tci=0x%04x)", a.PushVlan.TPID, a.PushVlan.TCI)
	case ActSetKey:
		return fmt.Sprintf("SetKey(%v)", a.Key.Kind)
	default:
		return "unknown"
	}
}
