// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package conncache defines the connection-tracking capability used by
// PacketContext.IsForwardFlow to decide whether the current packet is the
// forward or return leg of a previously-seen flow.
package conncache

import (
	"net"
	"time"

	"grimm.is/midonet/internal/topology"
)

// Key identifies one direction of a connection: a 5-tuple plus the device
// that's asking, so the same 5-tuple can carry independent markers per
// device.
type Key struct {
	DeviceID topology.DeviceID
	Proto    uint8
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
}

// NewKey builds a Key from IPs typed as net.IP for convenience.
func NewKey(deviceID topology.DeviceID, proto uint8, src, dst net.IP, srcPort, dstPort uint16) Key {
	return Key{
		DeviceID: deviceID,
		Proto:    proto,
		SrcIP:    src.String(),
		DstIP:    dst.String(),
		SrcPort:  srcPort,
		DstPort:  dstPort,
	}
}

// Reverse returns the key for the opposite direction of the same connection.
func (k Key) Reverse() Key {
	return Key{
		DeviceID: k.DeviceID,
		Proto:    k.Proto,
		SrcIP:    k.DstIP,
		DstIP:    k.SrcIP,
		SrcPort:  k.DstPort,
		DstPort:  k.SrcPort,
	}
}

// Marker is the value stored against a Key; "forward" marks the direction
// that was first observed.
type Marker struct {
	Forward bool
}

// Cache is the narrow capability handle the coordinator depends on. It is
// externally owned and safe for concurrent use; the coordinator never holds
// a lock across a suspension point, relying on the cache to serialize
// internally.
type Cache interface {
	Put(key Key, marker Marker, ttl time.Duration)
	Get(key Key) (Marker, bool)
}
