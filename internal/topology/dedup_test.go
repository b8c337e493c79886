// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache counts how many times each method actually reaches the
// backend, so tests can assert concurrent fetches for the same id collapse.
type countingCache struct {
	portCalls int32
	port      *Port
}

func (c *countingCache) Port(_ context.Context, id PortID) (*Port, bool) {
	atomic.AddInt32(&c.portCalls, 1)
	if c.port != nil && c.port.ID == id {
		return c.port, true
	}
	return nil, false
}
func (c *countingCache) Bridge(context.Context, DeviceID) (*Bridge, bool)          { return nil, false }
func (c *countingCache) Router(context.Context, DeviceID) (*Router, bool)          { return nil, false }
func (c *countingCache) VlanBridge(context.Context, DeviceID) (*VlanBridge, bool)  { return nil, false }

func TestDedup_ConcurrentFetchesForSameIDCollapse(t *testing.T) {
	id := uuid.New()
	backing := &countingCache{port: &Port{ID: id, Exterior: true}}
	d := NewDedup(backing)

	var wg sync.WaitGroup
	results := make([]bool, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, ok := d.Port(context.Background(), id)
			results[i] = ok && p.ID == id
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	// singleflight only guarantees coalescing of calls that overlap in
	// time, so this cannot assert exactly one backend call, but it must
	// be far fewer than the number of callers.
	assert.Less(t, int(backing.portCalls), len(results))
}

func TestDedup_SubsequentFetchAfterCompletionHitsBackendAgain(t *testing.T) {
	id := uuid.New()
	backing := &countingCache{port: &Port{ID: id}}
	d := NewDedup(backing)

	_, ok := d.Port(context.Background(), id)
	require.True(t, ok)
	_, ok = d.Port(context.Background(), id)
	require.True(t, ok)

	assert.Equal(t, int32(2), backing.portCalls, "Dedup adds no caching beyond in-flight coalescing")
}

func TestDedup_MissPropagatesFromBacking(t *testing.T) {
	backing := &countingCache{}
	d := NewDedup(backing)

	_, ok := d.Port(context.Background(), uuid.New())
	assert.False(t, ok)
}
