// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package emit defines the narrow "emit generated packet" capability the
// core invokes for internally-synthesized traffic (ARP replies, ICMP
// errors, DHCP offers). The full DHCP/ARP replier subsystems are out of
// scope for the core per spec; this package fixes only the boundary the
// core depends on. A generated packet is handed off to the emitter and is
// never simulated inline — the coordinator is not reentrant on the same
// Packet Context.
package emit

import (
	"context"
	"net"

	"grimm.is/midonet/internal/topology"
)

// GeneratedPacket is one frame the core asks a collaborator to send, out of
// the given port, without installing a flow for it.
type GeneratedPacket struct {
	Port  topology.PortID
	Frame []byte
}

// ResolvedAddress identifies the (port, next-hop) pair an ARP resolution
// callback fired for.
type ResolvedAddress struct {
	Port topology.PortID
	IP   net.IP
}

// Emitter sends a generated packet out a port, and wakes a collaborator
// when an address the core was waiting on resolves. Implementations
// typically hand the frame to the same datapath interface the
// installed-flow path uses, or queue it for a sibling process; that wiring
// is a collaborator's concern. NotifyResolved is the spec §4.4 step 5
// "retry after resolve" callback: the Router itself never re-runs Simulate
// inline, it only tells the collaborator an address it dropped traffic for
// is now resolved so that collaborator can re-inject.
type Emitter interface {
	Emit(ctx context.Context, pkt GeneratedPacket) error
	NotifyResolved(ctx context.Context, addr ResolvedAddress)
}

// Recorder is a test/demo Emitter that just records what it was asked to
// send or notify.
type Recorder struct {
	Sent     []GeneratedPacket
	Resolved []ResolvedAddress
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(_ context.Context, pkt GeneratedPacket) error {
	r.Sent = append(r.Sent, pkt)
	return nil
}

func (r *Recorder) NotifyResolved(_ context.Context, addr ResolvedAddress) {
	r.Resolved = append(r.Resolved, addr)
}
