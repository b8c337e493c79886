// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

type fakeFetcher map[topology.ChainID]*Chain

func (f fakeFetcher) Chain(id topology.ChainID) (*Chain, bool) {
	c, ok := f[id]
	return c, ok
}

func alwaysTrue(m *wildcard.Match) bool { return true }

func TestEvaluator_EmptyChainAcceptsByDefault(t *testing.T) {
	eval := New(fakeFetcher{})
	chain := &Chain{ID: uuid.New()}
	got := eval.Apply(chain, wildcard.New(), "owner", false, nil)
	assert.Equal(t, VerdictAccept, got)
}

func TestEvaluator_FirstMatchWins(t *testing.T) {
	eval := New(fakeFetcher{})
	chain := &Chain{Rules: []Rule{
		{ID: "r1", Condition: alwaysTrue, Action: Action{Tag: ActionDrop}},
		{ID: "r2", Condition: alwaysTrue, Action: Action{Tag: ActionAccept}},
	}}
	assert.Equal(t, VerdictDrop, eval.Apply(chain, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_ContinueSkipsToNextRule(t *testing.T) {
	eval := New(fakeFetcher{})
	chain := &Chain{Rules: []Rule{
		{ID: "r1", Condition: alwaysTrue, Action: Action{Tag: ActionContinue}},
		{ID: "r2", Condition: alwaysTrue, Action: Action{Tag: ActionReject}},
	}}
	assert.Equal(t, VerdictReject, eval.Apply(chain, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_NonMatchingConditionFallsThrough(t *testing.T) {
	eval := New(fakeFetcher{})
	never := func(m *wildcard.Match) bool { return false }
	chain := &Chain{Rules: []Rule{
		{ID: "r1", Condition: never, Action: Action{Tag: ActionDrop}},
	}}
	assert.Equal(t, VerdictAccept, eval.Apply(chain, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_JumpAndReturnResumesCaller(t *testing.T) {
	targetID := uuid.New()
	target := &Chain{ID: targetID, Rules: []Rule{
		{ID: "t1", Condition: alwaysTrue, Action: Action{Tag: ActionReturn}},
	}}
	caller := &Chain{Rules: []Rule{
		{ID: "c1", Condition: alwaysTrue, Action: Action{Tag: ActionJump, JumpTarget: targetID}},
		{ID: "c2", Condition: alwaysTrue, Action: Action{Tag: ActionReject}},
	}}
	eval := New(fakeFetcher{targetID: target})
	assert.Equal(t, VerdictReject, eval.Apply(caller, wildcard.New(), "owner", false, nil),
		"RETURN from the jumped-to chain must resume the caller at the next rule, not terminate evaluation")
}

func TestEvaluator_JumpToDroppingChainStopsCaller(t *testing.T) {
	targetID := uuid.New()
	target := &Chain{ID: targetID, Rules: []Rule{
		{ID: "t1", Condition: alwaysTrue, Action: Action{Tag: ActionDrop}},
	}}
	caller := &Chain{Rules: []Rule{
		{ID: "c1", Condition: alwaysTrue, Action: Action{Tag: ActionJump, JumpTarget: targetID}},
		{ID: "c2", Condition: alwaysTrue, Action: Action{Tag: ActionAccept}},
	}}
	eval := New(fakeFetcher{targetID: target})
	assert.Equal(t, VerdictDrop, eval.Apply(caller, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_JumpToMissingChainErrorDrops(t *testing.T) {
	caller := &Chain{Rules: []Rule{
		{ID: "c1", Condition: alwaysTrue, Action: Action{Tag: ActionJump, JumpTarget: uuid.New()}},
	}}
	eval := New(fakeFetcher{})
	assert.Equal(t, VerdictErrorDrop, eval.Apply(caller, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_JumpDepthExceededErrorDrops(t *testing.T) {
	fetcher := fakeFetcher{}
	// Build a chain that jumps to itself, forever.
	selfID := uuid.New()
	self := &Chain{ID: selfID}
	self.Rules = []Rule{{ID: "loop", Condition: alwaysTrue, Action: Action{Tag: ActionJump, JumpTarget: selfID}}}
	fetcher[selfID] = self

	eval := New(fetcher)
	assert.Equal(t, VerdictErrorDrop, eval.Apply(self, wildcard.New(), "owner", false, nil))
}

func TestEvaluator_NATAppliesBeforeVerdict(t *testing.T) {
	chain := &Chain{Rules: []Rule{
		{
			ID:        "nat",
			Condition: alwaysTrue,
			Action: Action{
				Tag: ActionAccept,
				NAT: &NATTransform{RewriteSrcPort: true, NewSrcPort: 9999},
			},
		},
	}}
	eval := New(fakeFetcher{})
	m := wildcard.New()
	m.SetTransport(1000, 2000)
	eval.Apply(chain, m, "owner", false, nil)
	assert.Equal(t, uint16(9999), m.TransportSrc, "NAT transform must run even though the rule's verdict is ACCEPT")
}

func TestEvaluator_TraceReceivesPerRuleMessages(t *testing.T) {
	chain := &Chain{Rules: []Rule{
		{ID: "r1", Condition: alwaysTrue, Action: Action{Tag: ActionAccept}},
	}}
	eval := New(fakeFetcher{})

	var got []string
	eval.Apply(chain, wildcard.New(), "port-1", true, func(ownerID, msg string) {
		got = append(got, ownerID+": "+msg)
	})
	assert.Equal(t, []string{"port-1: rule r1 accept"}, got)
}
