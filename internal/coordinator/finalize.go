// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package coordinator

import (
	"context"

	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

func (c *Coordinator) finalizePort(ctx context.Context, pctx *packetctx.Context, st *simState, pid topology.PortID) SimulationResult {
	var portNo uint32
	if port, ok := c.cache.Port(ctx, pid); ok {
		portNo = port.DatapathPortNo
	}
	return c.finalizeWithOutput(pctx, st, action.OutputAction(portNo))
}

func (c *Coordinator) finalize(ctx context.Context, pctx *packetctx.Context, st *simState, portSetID string, isPortSet bool) SimulationResult {
	return c.finalizeWithOutput(pctx, st, action.OutputPortSetAction(portSetID))
}

func (c *Coordinator) finalizeExtra(pctx *packetctx.Context, extra action.DatapathAction) SimulationResult {
	pctx.Freeze()
	actions := append(action.Translate(pctx.OriginalMatch(), pctx.CurrentMatch()), extra)
	return c.produceResult(pctx, &simState{}, actions)
}

func (c *Coordinator) finalizeWithOutput(pctx *packetctx.Context, st *simState, out action.DatapathAction) SimulationResult {
	pctx.Freeze()
	actions := append(action.Translate(pctx.OriginalMatch(), pctx.CurrentMatch()), out)
	return c.produceResult(pctx, st, actions)
}

func (c *Coordinator) produceResult(pctx *packetctx.Context, st *simState, actions []action.DatapathAction) SimulationResult {
	if !pctx.CookiePresent() {
		c.runCallbacks(pctx)
		return sendPacket(actions)
	}
	idle, hard := c.expirations(pctx, st)
	return addFlow(Flow{
		Match:            pctx.OriginalMatch(),
		Actions:          actions,
		IdleExpireMillis: idle,
		HardExpireMillis: hard,
	}, pctx.Callbacks(), pctx.Tags())
}

// expirations implements the expiration policy of spec §4.5.
func (c *Coordinator) expirations(pctx *packetctx.Context, st *simState) (idle, hard int64) {
	if !pctx.IsConnTracked() {
		return c.tunables.IdleExpirationMillis, 0
	}
	forward := pctx.IsForwardFlow(st.lastDeviceID, millis(c.tunables.ReturnFlowExpirationMillis))
	if forward {
		return 0, c.tunables.ReturnFlowExpirationMillis / 2
	}
	return 0, c.tunables.ReturnFlowExpirationMillis
}

func (c *Coordinator) dropResult(pctx *packetctx.Context, temporary bool) SimulationResult {
	if !pctx.CookiePresent() {
		c.runCallbacks(pctx)
		return noOp()
	}
	var idle, hard int64
	if temporary {
		hard = c.tunables.TemporaryDropMillis
	} else {
		idle = c.tunables.IdleExpirationMillis
	}
	return addFlow(Flow{
		Match:            pctx.OriginalMatch(),
		IdleExpireMillis: idle,
		HardExpireMillis: hard,
	}, pctx.Callbacks(), pctx.Tags())
}

func (c *Coordinator) consumedResult(pctx *packetctx.Context) SimulationResult {
	c.runCallbacks(pctx)
	return noOp()
}

// notIPv4Result installs a flow keyed only on the ether type, wider than
// the full match since the drop decision never consulted L3/L4 fields
// (spec §4.4 Router step 1, "yields a wider wildcard flow").
func (c *Coordinator) notIPv4Result(pctx *packetctx.Context) SimulationResult {
	if !pctx.CookiePresent() {
		c.runCallbacks(pctx)
		return noOp()
	}
	narrow := wildcard.New()
	narrow.SetEthType(pctx.OriginalMatch().EthType)
	return addFlow(Flow{
		Match:            narrow,
		IdleExpireMillis: c.tunables.IdleExpirationMillis,
	}, pctx.Callbacks(), pctx.Tags())
}
