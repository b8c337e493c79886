// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package coordinator

import (
	"context"

	"grimm.is/midonet/internal/emit"
	"grimm.is/midonet/internal/emit/icmpreply"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// applyFragmentationPolicy implements spec §4.4's fragmentation policy,
// applied before any device sees a frame arriving on an exterior port.
// handled reports whether the simulation is already finished; when false,
// the caller continues into the normal ingress path.
func (c *Coordinator) applyFragmentationPolicy(ctx context.Context, pctx *packetctx.Context, port *topology.Port) (SimulationResult, bool) {
	m := pctx.CurrentMatch()

	switch m.Fragment {
	case wildcard.FragmentFirst:
		if m.EthType == wildcard.EtherTypeIPv4 {
			if frame, err := icmpreply.FragmentationNeeded(m.EthDst, m.EthSrc, m.NetworkDst, m.NetworkSrc, m.ICMPData); err == nil {
				if c.emitter != nil {
					_ = c.emitter.Emit(ctx, emit.GeneratedPacket{Port: port.ID, Frame: frame})
				}
			}
			return c.dropResult(pctx, true), true
		}
		return c.dropResult(pctx, false), true

	case wildcard.FragmentLater:
		return c.laterFragmentDrop(pctx), true

	default:
		return SimulationResult{}, false
	}
}

// laterFragmentDrop installs the wide ether-type+fragment-type-only
// wildcard flow that drops all later fragments of any connection.
func (c *Coordinator) laterFragmentDrop(pctx *packetctx.Context) SimulationResult {
	if !pctx.CookiePresent() {
		c.runCallbacks(pctx)
		return noOp()
	}
	narrow := wildcard.New()
	narrow.SetEthType(pctx.OriginalMatch().EthType)
	narrow.SetFragmentType(wildcard.FragmentLater)
	return addFlow(Flow{
		Match:            narrow,
		IdleExpireMillis: c.tunables.IdleExpirationMillis,
	}, pctx.Callbacks(), pctx.Tags())
}
