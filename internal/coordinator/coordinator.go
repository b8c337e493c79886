// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package coordinator

import (
	"context"

	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/conncache"
	"grimm.is/midonet/internal/coordmetrics"
	"grimm.is/midonet/internal/devices"
	"grimm.is/midonet/internal/emit"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/rules"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// CallbackRunner fires a FlowRemovedCallback synchronously. Implementations
// typically look the handle up in whatever registry owns it and run the
// associated cleanup; the coordinator only guarantees each callback fires
// exactly once, never what firing does.
type CallbackRunner interface {
	Run(cb packetctx.FlowRemovedCallback)
}

// Coordinator is the per-packet simulation nucleus (spec §2.6). One
// Coordinator is shared across all simulations; it carries no per-packet
// state itself.
type Coordinator struct {
	cache     topology.Cache
	chains    rules.ChainFetcher
	eval      *rules.Evaluator
	emitter   emit.Emitter
	callbacks CallbackRunner
	metrics   *coordmetrics.Metrics
	tunables  Tunables
	logger    *logging.Logger
}

// New builds a Coordinator. metrics may be nil to disable instrumentation.
func New(cache topology.Cache, chains rules.ChainFetcher, emitter emit.Emitter, callbacks CallbackRunner, metrics *coordmetrics.Metrics, tunables Tunables) *Coordinator {
	return &Coordinator{
		cache:     cache,
		chains:    chains,
		eval:      rules.New(chains),
		emitter:   emitter,
		callbacks: callbacks,
		metrics:   metrics,
		tunables:  tunables,
		logger:    logging.WithComponent("coordinator"),
	}
}

// simState threads the bookkeeping a single Simulate call needs across its
// recursive descent: the raw bytes of the original datagram (for ICMP
// embedding) and the most recently visited device, used to pick a
// conntrack direction at finalize time.
type simState struct {
	rawDatagram  []byte
	lastDeviceID topology.DeviceID
}

// Simulate runs one packet through the virtual topology and returns the
// resulting SimulationResult. traceConds enables verbose per-device
// tracing if any predicate matches the original match.
func (c *Coordinator) Simulate(
	ctx context.Context,
	original *wildcard.Match,
	inputPort *topology.PortID,
	generatedEgressPort *topology.PortID,
	cookiePresent bool,
	connCache conncache.Cache,
	traceConds []packetctx.TraceCondition,
	rawDatagram []byte,
) SimulationResult {
	pctx := packetctx.New(original, connCache, cookiePresent, traceConds)
	st := &simState{rawDatagram: rawDatagram}

	var result SimulationResult
	switch {
	case inputPort != nil && generatedEgressPort == nil:
		pctx.SetInputPort(*inputPort)
		result = c.ingressPort(ctx, pctx, st, *inputPort)
	case generatedEgressPort != nil && inputPort == nil:
		pctx.SetOutputPort(*generatedEgressPort)
		result = c.egressPort(ctx, pctx, st, *generatedEgressPort)
	default:
		pctx.Trace(topology.DeviceID{}, "illegal start")
		c.logger.Warn("illegal simulation start", "has_input_port", inputPort != nil, "has_generated_egress", generatedEgressPort != nil)
		result = c.dropResult(pctx, true)
	}

	pctx.Consume()
	if c.metrics != nil {
		c.metrics.ObserveSimulation(result.Tag.String(), pctx.DevicesTraversed())
	}
	return result
}

func (c *Coordinator) ingressPort(ctx context.Context, pctx *packetctx.Context, st *simState, pid topology.PortID) SimulationResult {
	port, ok := c.cache.Port(ctx, pid)
	if !ok || !port.AdminUp {
		pctx.Trace(topology.DeviceID{}, "ingress port missing or down")
		return c.dropResult(pctx, true)
	}

	if port.Exterior {
		for _, g := range port.PortGroups {
			pctx.CurrentMatch().AddPortGroup(g)
		}
		if res, handled := c.applyFragmentationPolicy(ctx, pctx, port); handled {
			return res
		}
	}

	if port.HasInputFilter() {
		if da, accept := devices.ApplyPortFilter(c.eval, port.InputFilter, c.chains, pctx, pid.String(), true); !accept {
			return c.interpret(ctx, pctx, st, da, pid)
		}
	}

	return c.ingressDevice(ctx, pctx, st, port.DeviceID, pid)
}

func (c *Coordinator) ingressDevice(ctx context.Context, pctx *packetctx.Context, st *simState, did topology.DeviceID, inputPort topology.PortID) SimulationResult {
	visits, total := pctx.VisitDevice(did)
	if total > c.tunables.MaxDevicesTraversed || visits > c.tunables.LoopVisitThreshold {
		pctx.Trace(did, "loop detection or traversal budget exceeded")
		if c.metrics != nil {
			c.metrics.ObserveLoopDetection()
		}
		return c.dropResult(pctx, true)
	}
	st.lastDeviceID = did

	if b, ok := c.cache.Bridge(ctx, did); ok {
		da := devices.ProcessBridge(b, inputPort, pctx)
		return c.afterDevice(ctx, pctx, st, da, did, b.OutputFilter, inputPort)
	}
	if r, ok := c.cache.Router(ctx, did); ok {
		da := devices.ProcessRouter(ctx, r, inputPort, pctx, c.emitter, st.rawDatagram)
		return c.afterDevice(ctx, pctx, st, da, did, r.OutputFilter, inputPort)
	}
	if vb, ok := c.cache.VlanBridge(ctx, did); ok {
		da := devices.ProcessVlanBridge(vb, inputPort, pctx)
		return c.afterDevice(ctx, pctx, st, da, did, vb.OutputFilter, inputPort)
	}

	pctx.Trace(did, "illegal state: device missing from topology cache")
	c.logger.Warn("device missing from topology cache", "device", did)
	return c.dropResult(pctx, true)
}

// afterDevice applies the device's own output chain (a supplement beyond
// the port-level filters spec §4.5 names explicitly) to any forwarding
// decision before handing it to the interpreter.
func (c *Coordinator) afterDevice(ctx context.Context, pctx *packetctx.Context, st *simState, da action.DeviceAction, did topology.DeviceID, outputFilter topology.ChainID, inputPort topology.PortID) SimulationResult {
	switch da.Tag {
	case action.ToPort, action.ToPortSet, action.Fork:
		if outputFilter != (topology.ChainID{}) {
			if filtered, accept := devices.ApplyPortFilter(c.eval, outputFilter, c.chains, pctx, did.String(), false); !accept {
				return c.interpret(ctx, pctx, st, filtered, inputPort)
			}
		}
	}
	return c.interpret(ctx, pctx, st, da, inputPort)
}

func (c *Coordinator) interpret(ctx context.Context, pctx *packetctx.Context, st *simState, da action.DeviceAction, inputPort topology.PortID) SimulationResult {
	switch da.Tag {
	case action.ToPort:
		if da.PendingVLANPush != nil {
			pctx.CurrentMatch().PushVLAN(*da.PendingVLANPush)
		}
		return c.egressPort(ctx, pctx, st, da.Port)
	case action.ToPortSet:
		return c.finalize(ctx, pctx, st, da.PortSetID.String(), true)
	case action.Fork:
		return c.fork(ctx, pctx, st, da.Children, inputPort)
	case action.Consumed:
		return c.consumedResult(pctx)
	case action.Drop:
		return c.dropResult(pctx, da.Temporary)
	case action.ErrorDrop:
		pctx.Trace(topology.DeviceID{}, "error drop")
		return c.dropResult(pctx, true)
	case action.NotIPv4:
		return c.notIPv4Result(pctx)
	case action.DoDatapathAction:
		return c.finalizeExtra(pctx, da.Datapath)
	default:
		pctx.Trace(topology.DeviceID{}, "illegal state: unexpected device action")
		return c.dropResult(pctx, true)
	}
}

func (c *Coordinator) egressPort(ctx context.Context, pctx *packetctx.Context, st *simState, pid topology.PortID) SimulationResult {
	port, ok := c.cache.Port(ctx, pid)
	if !ok || !port.AdminUp {
		pctx.Trace(topology.DeviceID{}, "egress port missing or down")
		return c.dropResult(pctx, true)
	}

	if port.HasOutputFilter() {
		if da, accept := devices.ApplyPortFilter(c.eval, port.OutputFilter, c.chains, pctx, pid.String(), true); !accept {
			return c.interpret(ctx, pctx, st, da, pid)
		}
	}

	if port.Exterior {
		return c.finalizePort(ctx, pctx, st, pid)
	}
	return c.ingressPort(ctx, pctx, st, port.PeerID)
}

// fork evaluates each sub-action sequentially against the match as it
// stood at fork-start, merging results pairwise (spec §4.5).
func (c *Coordinator) fork(ctx context.Context, pctx *packetctx.Context, st *simState, children []action.DeviceAction, inputPort topology.PortID) SimulationResult {
	if len(children) == 0 {
		return c.dropResult(pctx, true)
	}
	matchAtFork := pctx.CurrentMatch().Clone()

	var merged SimulationResult
	first := true
	for _, child := range children {
		branch := pctx.Clone(matchAtFork)
		branchResult := c.interpret(ctx, branch, st, child, inputPort)
		pctx.Merge(branch)

		if first {
			merged = branchResult
			first = false
			continue
		}
		var incompatible bool
		merged, incompatible = mergeResults(merged, branchResult)
		if incompatible {
			pctx.Trace(topology.DeviceID{}, "incompatible fork outcomes")
			c.logger.Warn("incompatible fork outcomes", "a", merged.Tag, "b", branchResult.Tag)
			if c.metrics != nil {
				c.metrics.ObserveForkMerge(false)
			}
			return c.dropResult(pctx, true)
		}
	}
	if c.metrics != nil {
		c.metrics.ObserveForkMerge(true)
	}
	return merged
}

func mergeResults(a, b SimulationResult) (SimulationResult, bool) {
	if a.Tag != b.Tag {
		return SimulationResult{}, true
	}
	switch a.Tag {
	case ResultNoOp:
		return a, false
	case ResultSendPacket:
		return sendPacket(append(append([]action.DatapathAction(nil), a.Actions...), b.Actions...)), false
	case ResultAddVirtualWildcardFlow:
		flow := Flow{
			Match:            a.Flow.Match,
			Actions:          append(append([]action.DatapathAction(nil), a.Flow.Actions...), b.Flow.Actions...),
			IdleExpireMillis: minNonZero(a.Flow.IdleExpireMillis, b.Flow.IdleExpireMillis),
			HardExpireMillis: minNonZero(a.Flow.HardExpireMillis, b.Flow.HardExpireMillis),
		}
		return addFlow(flow, unionCallbacks(a.Callbacks, b.Callbacks), unionTags(a.Tags, b.Tags)), false
	default:
		return SimulationResult{}, true
	}
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func unionCallbacks(a, b []packetctx.FlowRemovedCallback) []packetctx.FlowRemovedCallback {
	out := append([]packetctx.FlowRemovedCallback(nil), a...)
	seen := make(map[string]bool, len(out))
	for _, cb := range out {
		seen[cb.Handle] = true
	}
	for _, cb := range b {
		if !seen[cb.Handle] {
			out = append(out, cb)
			seen[cb.Handle] = true
		}
	}
	return out
}

func unionTags(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(out))
	for _, t := range out {
		seen[t] = true
	}
	for _, t := range b {
		if !seen[t] {
			out = append(out, t)
			seen[t] = true
		}
	}
	return out
}

func (c *Coordinator) runCallbacks(pctx *packetctx.Context) {
	if c.callbacks == nil {
		return
	}
	for _, cb := range pctx.Callbacks() {
		c.callbacks.Run(cb)
	}
}
