// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rules implements the Rule Chain Evaluator: an ordered list of
// condition+action rules applied to the current match, with JUMP/RETURN
// control flow between chains and in-place NAT rewrites.
package rules

import (
	"net"

	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/wildcard"
)

// ActionTag is the verdict (or control-flow directive) a matched rule applies.
type ActionTag int

const (
	ActionAccept ActionTag = iota
	ActionDrop
	ActionReject
	ActionJump
	ActionReturn
	ActionContinue
)

func (t ActionTag) String() string {
	switch t {
	case ActionAccept:
		return "accept"
	case ActionDrop:
		return "drop"
	case ActionReject:
		return "reject"
	case ActionJump:
		return "jump"
	case ActionReturn:
		return "return"
	case ActionContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// NATTransform rewrites source/destination addressing on the current match
// in place. A nil IP, or a port whose Rewrite flag is false, leaves that
// part of the match untouched.
type NATTransform struct {
	NewSrcIP   net.IP
	NewDstIP   net.IP
	NewSrcPort uint16
	NewDstPort uint16
	RewriteSrcPort bool
	RewriteDstPort bool
}

// Apply mutates m according to t.
func (t *NATTransform) Apply(m *wildcard.Match) {
	if t == nil {
		return
	}
	src, dst := m.NetworkSrc, m.NetworkDst
	if t.NewSrcIP != nil {
		src = t.NewSrcIP
	}
	if t.NewDstIP != nil {
		dst = t.NewDstIP
	}
	if t.NewSrcIP != nil || t.NewDstIP != nil {
		m.SetNetwork(m.IsIPv6, src, dst)
	}
	tsrc, tdst := m.TransportSrc, m.TransportDst
	if t.RewriteSrcPort {
		tsrc = t.NewSrcPort
	}
	if t.RewriteDstPort {
		tdst = t.NewDstPort
	}
	if t.RewriteSrcPort || t.RewriteDstPort {
		m.SetTransport(tsrc, tdst)
	}
}

// Condition is a pure predicate over the current match. It must not
// mutate m or have other side effects.
type Condition func(m *wildcard.Match) bool

// Action is the action a matched rule applies: a verdict tag plus optional
// jump target and NAT transform.
type Action struct {
	Tag        ActionTag
	JumpTarget topology.ChainID
	NAT        *NATTransform
}

// Rule is one entry of a Chain.
type Rule struct {
	ID        string
	Condition Condition
	Action    Action
}

// Chain is an ordered, addressable list of rules.
type Chain struct {
	ID    topology.ChainID
	Rules []Rule
}

// ChainFetcher looks up a chain snapshot by id, used to resolve JUMP
// targets. It is satisfied by the same backing cache that implements
// topology.Cache.
type ChainFetcher interface {
	Chain(id topology.ChainID) (*Chain, bool)
}

// And combines conditions with AND semantics.
func And(conds ...Condition) Condition {
	return func(m *wildcard.Match) bool {
		for _, c := range conds {
			if !c(m) {
				return false
			}
		}
		return true
	}
}

// Or combines conditions with OR semantics.
func Or(conds ...Condition) Condition {
	return func(m *wildcard.Match) bool {
		for _, c := range conds {
			if c(m) {
				return true
			}
		}
		return false
	}
}

// Not negates a condition.
func Not(c Condition) Condition {
	return func(m *wildcard.Match) bool { return !c(m) }
}
