// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package devices implements the Device Processors: pure functions over an
// immutable device snapshot and the mutable Packet Context that produce a
// single action.DeviceAction for the coordinator's Action Interpreter to
// advance.
package devices

import (
	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
)

// ProcessBridge implements the Bridge processor (spec §4.4). inputPort is
// the port the frame ingressed on this bridge, used for hairpin suppression
// and source-MAC learning.
func ProcessBridge(b *topology.Bridge, inputPort topology.PortID, ctx *packetctx.Context) action.DeviceAction {
	m := ctx.CurrentMatch()

	if len(m.EthSrc) == 6 {
		b.MacTable.Learn(string(m.EthSrc), inputPort)
	}

	if m.IsBroadcast() || m.IsMulticast() {
		return action.ToPortSetAction(b.FloodPortSetID)
	}

	learnedPort, ok := b.MacTable.Lookup(string(m.EthDst))
	if !ok {
		return action.ToPortSetAction(b.FloodPortSetID)
	}

	if learnedPort == inputPort {
		return action.DropAction(false)
	}

	if len(b.VLANPortMap) > 0 && len(m.VLANStack) > 0 {
		if trunk, ok := b.VLANPortMap[m.VLANStack[0]]; ok && trunk != learnedPort {
			return action.ForkAction(
				action.ToPortSetAction(b.FloodPortSetID),
				action.ToPortAction(trunk),
			)
		}
	}

	return action.ToPortAction(learnedPort)
}
