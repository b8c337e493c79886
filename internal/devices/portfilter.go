// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package devices

import (
	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/rules"
	"grimm.is/midonet/internal/topology"
)

// ApplyPortFilter wraps a device entry/exit with its associated chain
// (spec §4.4 Port Filter wrapper): dispatches to the Rule Chain Evaluator
// and converts a non-ACCEPT verdict into the corresponding DeviceAction. A
// zero chainID (no chain configured) is treated as an implicit ACCEPT.
func ApplyPortFilter(eval *rules.Evaluator, chainID topology.ChainID, fetcher rules.ChainFetcher, pctx *packetctx.Context, ownerID string, isPortFilter bool) (action.DeviceAction, bool) {
	if chainID == (topology.ChainID{}) {
		return action.DeviceAction{}, true
	}
	chain, ok := fetcher.Chain(chainID)
	if !ok {
		return action.ErrorDropAction(), false
	}

	trace := rules.Tracer(func(owner, msg string) { pctx.Trace(topology.DeviceID{}, owner+": "+msg) })
	verdict := eval.Apply(chain, pctx.CurrentMatch(), ownerID, isPortFilter, trace)

	switch verdict {
	case rules.VerdictAccept:
		return action.DeviceAction{}, true
	case rules.VerdictDrop, rules.VerdictReject:
		return action.DropAction(false), false
	default:
		return action.ErrorDropAction(), false
	}
}
