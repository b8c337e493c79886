// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packetctx

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/midonet/internal/conncache/memcache"
	"grimm.is/midonet/internal/wildcard"
)

func newTestMatch() *wildcard.Match {
	m := wildcard.New()
	m.SetNetwork(false, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"))
	m.SetIPProto(wildcard.IPProtoTCP)
	m.SetTransport(1234, 80)
	return m
}

func TestContext_MutatorsRequireOpen(t *testing.T) {
	c := New(newTestMatch(), nil, true, nil)
	require.NoError(t, c.AddFlowTag("tag1"))

	c.Freeze()
	assert.ErrorIs(t, c.AddFlowTag("tag2"), ErrNotOpen)
	assert.ErrorIs(t, c.SetMatch(wildcard.New()), ErrNotOpen)
	assert.ErrorIs(t, c.AddFlowRemovedCallback(FlowRemovedCallback{Handle: "h"}), ErrNotOpen)

	c.Unfreeze()
	assert.NoError(t, c.AddFlowTag("tag2"))

	c.Consume()
	assert.ErrorIs(t, c.AddFlowTag("tag3"), ErrNotOpen)
	assert.Equal(t, []string{"tag1", "tag2"}, sortedTags(c))
}

func sortedTags(c *Context) []string {
	tags := c.Tags()
	// deterministic order for comparison
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			if tags[j] < tags[i] {
				tags[i], tags[j] = tags[j], tags[i]
			}
		}
	}
	return tags
}

func TestContext_OriginalMatchIsSnapshotIndependentOfCurrent(t *testing.T) {
	orig := newTestMatch()
	c := New(orig, nil, true, nil)

	c.CurrentMatch().SetIPTTL(1)
	assert.False(t, c.OriginalMatch().Has(wildcard.FieldIPTTL), "mutating current must not affect the original snapshot")

	orig.SetIPTTL(99)
	assert.False(t, c.OriginalMatch().Has(wildcard.FieldIPTTL), "New() must clone its input so caller mutation afterward has no effect")
}

func TestContext_TraceEnabledWhenConditionMatches(t *testing.T) {
	cond := func(m *wildcard.Match) bool { return m.IPProto == wildcard.IPProtoTCP }
	c := New(newTestMatch(), nil, true, []TraceCondition{cond})
	assert.True(t, c.TraceEnabled())

	c2 := New(newTestMatch(), nil, true, []TraceCondition{func(m *wildcard.Match) bool { return false }})
	assert.False(t, c2.TraceEnabled())
}

func TestContext_TraceRecordsEntries(t *testing.T) {
	c := New(newTestMatch(), nil, true, nil)
	did := uuid.New()
	c.Trace(did, "hello")
	c.Trace(did, "world")

	traces := c.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "hello", traces[0].Message)
	assert.Equal(t, did, traces[1].DeviceID)
}

func TestContext_VisitDeviceCounts(t *testing.T) {
	c := New(newTestMatch(), nil, true, nil)
	a, b := uuid.New(), uuid.New()

	visits, total := c.VisitDevice(a)
	assert.Equal(t, 1, visits)
	assert.Equal(t, 1, total)

	visits, total = c.VisitDevice(b)
	assert.Equal(t, 1, visits)
	assert.Equal(t, 2, total)

	visits, total = c.VisitDevice(a)
	assert.Equal(t, 2, visits, "revisiting a device increments its own counter")
	assert.Equal(t, 3, total, "total traversal count is monotone across all devices")
}

func TestContext_IsForwardFlowWithoutConnCache(t *testing.T) {
	c := New(newTestMatch(), nil, true, nil)
	assert.True(t, c.IsForwardFlow(uuid.New(), time.Minute), "with no conncache every flow is treated as forward")
}

func TestContext_IsForwardFlowMarksFirstSeenDirectionForward(t *testing.T) {
	cc := memcache.New()
	did := uuid.New()

	forward := New(newTestMatch(), cc, true, nil)
	assert.True(t, forward.IsForwardFlow(did, time.Minute))

	reverseMatch := wildcard.New()
	reverseMatch.SetNetwork(false, net.ParseIP("10.0.0.2"), net.ParseIP("10.0.0.1"))
	reverseMatch.SetIPProto(wildcard.IPProtoTCP)
	reverseMatch.SetTransport(80, 1234)
	reverse := New(reverseMatch, cc, true, nil)
	assert.False(t, reverse.IsForwardFlow(did, time.Minute), "the reverse 5-tuple must be recognized as the return leg")
}

func TestContext_IsForwardFlowCachesItsOwnAnswer(t *testing.T) {
	c := New(newTestMatch(), memcache.New(), true, nil)
	did := uuid.New()
	first := c.IsForwardFlow(did, time.Minute)
	second := c.IsForwardFlow(did, time.Minute)
	assert.Equal(t, first, second, "repeated calls within the same context must return the same answer")
}

func TestContext_CloneSharesBookkeepingButNotMatch(t *testing.T) {
	parent := New(newTestMatch(), nil, true, nil)
	require.NoError(t, parent.AddFlowTag("shared"))
	parent.VisitDevice(uuid.New())

	branchMatch := parent.CurrentMatch().Clone()
	branchMatch.SetIPTTL(7)
	child := parent.Clone(branchMatch)

	assert.Equal(t, StateOpen, child.State(), "a cloned branch always starts Open regardless of the parent's state")
	assert.True(t, child.CurrentMatch().Has(wildcard.FieldIPTTL))
	assert.False(t, parent.CurrentMatch().Has(wildcard.FieldIPTTL), "the parent's match must be unaffected by the branch's match")

	require.NoError(t, child.AddFlowTag("child-only"))
	parent.Merge(child)
	assert.ElementsMatch(t, []string{"shared", "child-only"}, parent.Tags())
}

func TestContext_InputOutputPort(t *testing.T) {
	c := New(newTestMatch(), nil, true, nil)
	_, ok := c.InputPort()
	assert.False(t, ok)

	p := uuid.New()
	c.SetInputPort(p)
	got, ok := c.InputPort()
	assert.True(t, ok)
	assert.Equal(t, p, got)
}
