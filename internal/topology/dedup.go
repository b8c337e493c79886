// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Dedup wraps a backing Cache so concurrent fetches for the same id from
// overlapping simulations collapse to one backend round trip, per spec
// §4.2's "Implementations are free to share identity-equal snapshots
// across callers" contract. It adds no caching of its own beyond in-flight
// coalescing: once a fetch completes, the next caller triggers a fresh
// backend call exactly like the unwrapped Cache would.
type Dedup struct {
	backing Cache
	group   singleflight.Group
}

// NewDedup wraps backing with singleflight-coalesced fetches.
func NewDedup(backing Cache) *Dedup {
	return &Dedup{backing: backing}
}

func (d *Dedup) Port(ctx context.Context, id PortID) (*Port, bool) {
	v, _, _ := d.group.Do(dedupKey("port", id), func() (any, error) {
		p, ok := d.backing.Port(ctx, id)
		return dedupResult[*Port]{p, ok}, nil
	})
	r := v.(dedupResult[*Port])
	return r.val, r.ok
}

func (d *Dedup) Bridge(ctx context.Context, id DeviceID) (*Bridge, bool) {
	v, _, _ := d.group.Do(dedupKey("bridge", id), func() (any, error) {
		b, ok := d.backing.Bridge(ctx, id)
		return dedupResult[*Bridge]{b, ok}, nil
	})
	r := v.(dedupResult[*Bridge])
	return r.val, r.ok
}

func (d *Dedup) Router(ctx context.Context, id DeviceID) (*Router, bool) {
	v, _, _ := d.group.Do(dedupKey("router", id), func() (any, error) {
		r, ok := d.backing.Router(ctx, id)
		return dedupResult[*Router]{r, ok}, nil
	})
	r := v.(dedupResult[*Router])
	return r.val, r.ok
}

func (d *Dedup) VlanBridge(ctx context.Context, id DeviceID) (*VlanBridge, bool) {
	v, _, _ := d.group.Do(dedupKey("vlanbridge", id), func() (any, error) {
		vb, ok := d.backing.VlanBridge(ctx, id)
		return dedupResult[*VlanBridge]{vb, ok}, nil
	})
	r := v.(dedupResult[*VlanBridge])
	return r.val, r.ok
}

type dedupResult[T any] struct {
	val T
	ok  bool
}

func dedupKey(kind string, id fmt.Stringer) string {
	return kind + ":" + id.String()
}
