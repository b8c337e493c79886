// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import "context"

// Cache is the coordinator's read-only, asynchronous view of the virtual
// topology. Every fetch is parameterized by ctx's deadline: implementations
// must return (nil, false) once that deadline passes rather than blocking
// past it, exactly as they do for a genuine cache miss. Returned snapshots
// are deep-immutable and may be shared by identity across callers.
type Cache interface {
	Port(ctx context.Context, id PortID) (*Port, bool)
	Bridge(ctx context.Context, id DeviceID) (*Bridge, bool)
	Router(ctx context.Context, id DeviceID) (*Router, bool)
	VlanBridge(ctx context.Context, id DeviceID) (*VlanBridge, bool)
}
