// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package devices

import (
	"sort"

	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// ProcessVlanBridge implements the VlanBridge processor: a bridge that
// forks traffic between a local VLAN access port and the shared 802.1Q/
// 802.1ad trunk (spec §4.4 Bridge step 4). Frames arriving from an access
// port are pushed onto the trunk tagged with that port's VLAN; frames
// arriving from the trunk are popped and delivered to the matching access
// port.
func ProcessVlanBridge(vb *topology.VlanBridge, inputPort topology.PortID, ctx *packetctx.Context) action.DeviceAction {
	m := ctx.CurrentMatch()

	if len(m.EthSrc) == 6 {
		vb.MacTable.Learn(string(m.EthSrc), inputPort)
	}

	if inputPort == vb.TrunkPortID {
		return processFromTrunk(vb, m)
	}
	return processFromAccessPort(vb, inputPort, m)
}

func processFromTrunk(vb *topology.VlanBridge, m *wildcard.Match) action.DeviceAction {
	if len(m.VLANStack) == 0 {
		return action.DropAction(false)
	}
	vlanID := m.VLANStack[len(m.VLANStack)-1]
	m.PopVLAN()

	learnedPort, ok := vb.MacTable.Lookup(string(m.EthDst))
	if ok {
		if vlan, local := vb.PortVLANs[learnedPort]; local && vlan == vlanID {
			return action.ToPortAction(learnedPort)
		}
	}
	return floodVLAN(vb, vlanID, vb.TrunkPortID)
}

func processFromAccessPort(vb *topology.VlanBridge, inputPort topology.PortID, m *wildcard.Match) action.DeviceAction {
	vlanID, ok := vb.PortVLANs[inputPort]
	if !ok {
		return action.DropAction(false)
	}

	if m.IsBroadcast() || m.IsMulticast() {
		return action.ForkAction(floodVLAN(vb, vlanID, inputPort), trunkBound(vlanID, vb.TrunkPortID))
	}

	learnedPort, ok := vb.MacTable.Lookup(string(m.EthDst))
	if !ok {
		return action.ForkAction(floodVLAN(vb, vlanID, inputPort), trunkBound(vlanID, vb.TrunkPortID))
	}
	if learnedPort == inputPort {
		return action.DropAction(false)
	}
	if _, local := vb.PortVLANs[learnedPort]; local {
		return action.ToPortAction(learnedPort)
	}
	return trunkBound(vlanID, vb.TrunkPortID)
}

// trunkBound returns a ToPort(trunk) action that pushes vlanID onto the
// match just before that specific branch is interpreted. The push must not
// happen here, on the match shared with any flood sibling in a Fork — it is
// deferred onto the DeviceAction itself so the coordinator can apply it to
// only the trunk branch's own cloned match (spec §4.4 VLAN-bridge trunk
// fork; an access port is untagged, so the flood sibling must never see
// the pushed tag).
func trunkBound(vlanID uint16, trunk topology.PortID) action.DeviceAction {
	return action.ToPortWithVLANPushAction(trunk, vlanID)
}

// floodVLAN returns a flood action targeting every access port mapped to
// vlanID other than exclude. VlanBridge carries no dedicated per-VLAN
// flood port-set id, so interior flood enumerates PortVLANs directly. Ports
// are sorted before building Fork children so the resulting action order
// (and thus the merged datapath action order) is reproducible regardless of
// Go's randomized map iteration.
func floodVLAN(vb *topology.VlanBridge, vlanID uint16, exclude topology.PortID) action.DeviceAction {
	var ports []topology.PortID
	for port, vlan := range vb.PortVLANs {
		if vlan == vlanID && port != exclude {
			ports = append(ports, port)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].String() < ports[j].String() })

	switch len(ports) {
	case 0:
		return action.DropAction(false)
	case 1:
		return action.ToPortAction(ports[0])
	default:
		children := make([]action.DeviceAction, len(ports))
		for i, port := range ports {
			children[i] = action.ToPortAction(port)
		}
		return action.ForkAction(children...)
	}
}
