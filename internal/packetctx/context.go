// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packetctx implements the Packet Context: the mutable
// per-simulation scratchpad the coordinator threads through a single
// packet's traversal of the virtual topology.
package packetctx

import (
	"fmt"
	"time"

	"grimm.is/midonet/internal/conncache"
	"grimm.is/midonet/internal/errors"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// State is the Packet Context's mutation-discipline state machine:
// Open -> Frozen -> Consumed. All mutators require Open; Freeze transitions
// Open -> Frozen; Unfreeze returns Frozen -> Open. Fork branches do not
// unfreeze: each branch runs on its own Open child made by Clone.
type State int

const (
	StateOpen State = iota
	StateFrozen
	StateConsumed
)

// ErrNotOpen is returned by any mutator called while the context is frozen
// or consumed.
var ErrNotOpen = errors.New(errors.KindValidation, "packetctx: context is not open for mutation")

// FlowRemovedCallback is data, not a closure, so it can be attached to an
// installed flow and fired by the flow installer on removal without the
// coordinator having to keep a live reference.
type FlowRemovedCallback struct {
	Handle  string
	Payload any
}

// TraceEntry is one recorded trace line.
type TraceEntry struct {
	DeviceID topology.DeviceID
	Message  string
}

// TraceCondition is a predicate over the original match that, if it
// matches, turns on verbose per-device tracing for the whole simulation.
type TraceCondition func(m *wildcard.Match) bool

// Context is one simulation's Packet Context.
type Context struct {
	original *wildcard.Match
	current  *wildcard.Match
	state    State

	tags      map[string]struct{}
	callbacks []FlowRemovedCallback
	traces    []TraceEntry

	traceEnabled bool

	connCache        conncache.Cache
	connTracked      bool
	forwardKnown     bool
	forwardFlow      bool

	cookiePresent bool

	devicesTraversed int
	loopCounts       map[topology.DeviceID]int

	inputPort  *topology.PortID
	outputPort *topology.PortID

	logger *logging.Logger
}

// New creates a Context for one simulation. original is the immutable
// snapshot taken at ingress; it is cloned internally to seed the mutable
// current match so callers remain free to reuse their copy.
func New(original *wildcard.Match, connCache conncache.Cache, cookiePresent bool, traceConds []TraceCondition) *Context {
	orig := original.Clone()
	ctx := &Context{
		original:      orig,
		current:       orig.Clone(),
		state:         StateOpen,
		tags:          make(map[string]struct{}),
		connCache:     connCache,
		cookiePresent: cookiePresent,
		loopCounts:    make(map[topology.DeviceID]int),
		logger:        logging.WithComponent("packetctx"),
	}
	for _, cond := range traceConds {
		if cond(orig) {
			ctx.traceEnabled = true
			break
		}
	}
	return ctx
}

// OriginalMatch returns the immutable snapshot taken at ingress. Callers
// must not mutate the returned value.
func (c *Context) OriginalMatch() *wildcard.Match { return c.original }

// CurrentMatch returns the live, mutable match. Callers must not retain it
// across a mutation they don't own; clone first if in doubt.
func (c *Context) CurrentMatch() *wildcard.Match { return c.current }

// CloneMatch returns an independent copy of the current match.
func (c *Context) CloneMatch() *wildcard.Match { return c.current.Clone() }

// SetMatch replaces the current match. Fails if the context is not Open.
func (c *Context) SetMatch(m *wildcard.Match) error {
	if c.state != StateOpen {
		return ErrNotOpen
	}
	c.current = m
	return nil
}

// CookiePresent reports whether the packet being simulated came from the
// datapath (true) or was generated by a virtual device (false).
func (c *Context) CookiePresent() bool { return c.cookiePresent }

// Freeze is the one-way latch result production applies; it may only be
// released by an explicit Unfreeze.
func (c *Context) Freeze() {
	if c.state == StateOpen {
		c.state = StateFrozen
	}
}

// Unfreeze reopens a frozen context. The coordinator's Fork handler does
// not call it; branches get fresh Open children from Clone instead.
func (c *Context) Unfreeze() {
	if c.state == StateFrozen {
		c.state = StateOpen
	}
}

// Consume marks the context terminally done; no further mutation or reuse
// is permitted.
func (c *Context) Consume() { c.state = StateConsumed }

// State reports the current mutation-discipline state.
func (c *Context) State() State { return c.state }

// AddFlowTag records a tag to be attached to whatever flow this simulation
// eventually installs.
func (c *Context) AddFlowTag(t string) error {
	if c.state != StateOpen {
		return ErrNotOpen
	}
	c.tags[t] = struct{}{}
	return nil
}

// Tags returns the accumulated flow tags.
func (c *Context) Tags() []string {
	out := make([]string, 0, len(c.tags))
	for t := range c.tags {
		out = append(out, t)
	}
	return out
}

// AddFlowRemovedCallback registers a callback to fire exactly once: when
// the installed flow is removed, or synchronously if this simulation never
// installs one.
func (c *Context) AddFlowRemovedCallback(cb FlowRemovedCallback) error {
	if c.state != StateOpen {
		return ErrNotOpen
	}
	c.callbacks = append(c.callbacks, cb)
	return nil
}

// Callbacks returns the accumulated flow-removed callbacks.
func (c *Context) Callbacks() []FlowRemovedCallback {
	return append([]FlowRemovedCallback(nil), c.callbacks...)
}

// Trace records a per-device trace line. If the simulation is
// trace-enabled it also logs at Info; otherwise it's recorded for
// retrieval but logged only at Debug.
func (c *Context) Trace(deviceID topology.DeviceID, message string) {
	c.traces = append(c.traces, TraceEntry{DeviceID: deviceID, Message: message})
	if c.traceEnabled {
		c.logger.Info(message, "device", deviceID)
	} else {
		c.logger.Debug(message, "device", deviceID)
	}
}

// Traces returns the recorded trace entries.
func (c *Context) Traces() []TraceEntry {
	return append([]TraceEntry(nil), c.traces...)
}

// TraceEnabled reports whether a traced condition matched at simulation start.
func (c *Context) TraceEnabled() bool { return c.traceEnabled }

// SetInputPort records the port the packet ingressed, for wildcard flow
// bookkeeping separate from the match's own InputPort field.
func (c *Context) SetInputPort(p topology.PortID) {
	id := p
	c.inputPort = &id
}

// InputPort returns the recorded ingress port, if any.
func (c *Context) InputPort() (topology.PortID, bool) {
	if c.inputPort == nil {
		return topology.PortID{}, false
	}
	return *c.inputPort, true
}

// SetOutputPort records the port a virtual device chose to generate a
// packet out of.
func (c *Context) SetOutputPort(p topology.PortID) {
	id := p
	c.outputPort = &id
}

// OutputPort returns the recorded generated-egress port, if any.
func (c *Context) OutputPort() (topology.PortID, bool) {
	if c.outputPort == nil {
		return topology.PortID{}, false
	}
	return *c.outputPort, true
}

func (c *Context) IsConnTracked() bool { return c.connTracked }

func (c *Context) MarkConnTracked() { c.connTracked = true }

// IsForwardFlow lazily consults the connection cache on first query: it
// derives a key from the current match, looks up whether that direction
// was already marked, and if not, marks this direction as forward and
// records the reverse direction implicitly by virtue of the lookup miss.
func (c *Context) IsForwardFlow(deviceID topology.DeviceID, ttl time.Duration) bool {
	if c.forwardKnown {
		return c.forwardFlow
	}
	c.forwardKnown = true
	if c.connCache == nil {
		c.forwardFlow = true
		return true
	}
	key := connKey(deviceID, c.current)
	if _, ok := c.connCache.Get(key.Reverse()); ok {
		c.forwardFlow = false
		return false
	}
	c.connCache.Put(key, conncache.Marker{Forward: true}, ttl)
	c.forwardFlow = true
	return true
}

func connKey(deviceID topology.DeviceID, m *wildcard.Match) conncache.Key {
	return conncache.NewKey(deviceID, m.IPProto, m.NetworkSrc, m.NetworkDst, m.TransportSrc, m.TransportDst)
}

// VisitDevice records a visit to device id for loop detection, returning
// the per-device visit count and the total devices-traversed count so far.
// Both counters are strictly monotonically increasing within one
// simulation.
func (c *Context) VisitDevice(id topology.DeviceID) (visits int, total int) {
	c.devicesTraversed++
	c.loopCounts[id]++
	return c.loopCounts[id], c.devicesTraversed
}

// DevicesTraversed returns the running devices-traversed count.
func (c *Context) DevicesTraversed() int { return c.devicesTraversed }

// Clone produces a child context for a Fork branch: it shares the tag set
// and the per-device loop counts by reference, and starts from the parent's
// callbacks, traces, devices-traversed count and connection-tracking state
// as they stand (Merge folds callbacks, traces and the devices-traversed
// count back; connection-tracking changes stay in the child). It gets its
// own Open state and its own copy of the current match set to matchAtFork.
func (c *Context) Clone(matchAtFork *wildcard.Match) *Context {
	return &Context{
		original:      c.original,
		current:       matchAtFork.Clone(),
		state:         StateOpen,
		tags:          c.tags,
		callbacks:     c.callbacks,
		traces:        c.traces,
		traceEnabled:  c.traceEnabled,
		connCache:     c.connCache,
		connTracked:   c.connTracked,
		forwardKnown:  c.forwardKnown,
		forwardFlow:   c.forwardFlow,
		cookiePresent: c.cookiePresent,
		devicesTraversed: c.devicesTraversed,
		loopCounts:    c.loopCounts,
		inputPort:     c.inputPort,
		outputPort:    c.outputPort,
		logger:        c.logger,
	}
}

// Merge folds a forked child's accumulated callbacks/tags/traces back into
// c after the branch completes, since the child's slices may have been
// reallocated by appends the parent doesn't see (maps are shared already).
func (c *Context) Merge(child *Context) {
	for t := range child.tags {
		c.tags[t] = struct{}{}
	}
	if len(child.callbacks) > len(c.callbacks) {
		c.callbacks = child.callbacks
	}
	if len(child.traces) > len(c.traces) {
		c.traces = child.traces
	}
	c.devicesTraversed = child.devicesTraversed
}

func (c *Context) String() string {
	return fmt.Sprintf("packetctx{state=%d, devicesTraversed=%d}", c.state, c.devicesTraversed)
}
