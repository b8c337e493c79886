// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package devices

import (
	"context"

	"grimm.is/midonet/internal/action"
	"grimm.is/midonet/internal/emit"
	"grimm.is/midonet/internal/emit/arpreply"
	"grimm.is/midonet/internal/emit/icmpreply"
	"grimm.is/midonet/internal/errors"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

var routerLog = logging.WithComponent("devices.router")

// OriginalDatagram reconstructs the minimal bytes icmpreply needs to embed
// in an error reply: the IP header is not carried separately in a
// wildcard.Match, so callers supply whatever raw bytes they have on hand
// (the teacher-style contract: the match is the only thing the coordinator
// itself ever rewrites; the raw frame is a collaborator's concern). A nil
// slice is valid — icmpreply embeds nothing.
type OriginalDatagram = []byte

// ProcessRouter implements the Router processor (spec §4.4). inputPort is
// the port the frame ingressed on this router. rawDatagram is the raw
// bytes of the original IP datagram, used only to embed in ICMP error
// replies.
func ProcessRouter(ctx context.Context, r *topology.Router, inputPort topology.PortID, pctx *packetctx.Context, emitter emit.Emitter, rawDatagram OriginalDatagram) action.DeviceAction {
	m := pctx.CurrentMatch()

	switch m.EthType {
	case wildcard.EtherTypeARP:
		return processRouterARP(ctx, r, inputPort, pctx, emitter)
	case wildcard.EtherTypeIPv4, wildcard.EtherTypeIPv6:
		// fall through to IP handling below
	default:
		return action.NotIPv4Action()
	}

	if m.IPTTL <= 1 {
		addr, ok := r.PortAddresses[inputPort]
		if ok {
			if frame, err := icmpreply.TimeExceeded(addr.MAC, m.EthSrc, addr.IP, m.NetworkSrc, rawDatagram); err == nil {
				emitGenerated(ctx, emitter, inputPort, frame)
			} else {
				routerLog.WithError(err).Warn("failed to build time-exceeded reply")
			}
		}
		return action.DropAction(false)
	}
	m.SetIPTTL(m.IPTTL - 1)

	route, ok := r.Routes.Lookup(m.NetworkDst)
	if !ok {
		addr, haveAddr := r.PortAddresses[inputPort]
		if haveAddr {
			if frame, err := icmpreply.DestNetUnreachable(addr.MAC, m.EthSrc, addr.IP, m.NetworkSrc, rawDatagram); err == nil {
				emitGenerated(ctx, emitter, inputPort, frame)
			} else {
				routerLog.WithError(err).Warn("failed to build dest-unreachable reply")
			}
		}
		return action.DropAction(false)
	}

	nextHop := route.NextHop
	if nextHop == nil {
		nextHop = m.NetworkDst
	}

	nextHopMAC, resolved := r.Arp.Lookup(route.EgressPort, nextHop)
	if !resolved {
		egressPort, ip := route.EgressPort, nextHop
		r.Arp.RequestResolution(egressPort, ip, func() {
			if emitter != nil {
				emitter.NotifyResolved(ctx, emit.ResolvedAddress{Port: egressPort, IP: ip})
			}
		})
		return action.DropAction(true)
	}

	egressAddr, haveAddr := r.PortAddresses[route.EgressPort]
	if haveAddr {
		m.SetEthernet(egressAddr.MAC, nextHopMAC)
	} else {
		m.SetEthernet(m.EthSrc, nextHopMAC)
	}
	return action.ToPortAction(route.EgressPort)
}

func processRouterARP(ctx context.Context, r *topology.Router, inputPort topology.PortID, pctx *packetctx.Context, emitter emit.Emitter) action.DeviceAction {
	m := pctx.CurrentMatch()
	addr, ok := r.PortAddresses[inputPort]
	if !ok || !addr.IP.Equal(m.NetworkDst) {
		return action.DropAction(false)
	}
	frame, err := arpreply.Build(addr.MAC, addr.IP, m.EthSrc, m.NetworkSrc)
	if err != nil {
		routerLog.WithError(errors.Wrap(err, errors.KindInternal, "router: arp reply build failed")).Warn("failed to build arp reply")
		return action.ErrorDropAction()
	}
	emitGenerated(ctx, emitter, inputPort, frame)
	return action.ConsumedAction()
}

func emitGenerated(ctx context.Context, emitter emit.Emitter, port topology.PortID, frame []byte) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, emit.GeneratedPacket{Port: port, Frame: frame}); err != nil {
		routerLog.WithError(err).Warn("failed to emit generated packet")
	}
}

