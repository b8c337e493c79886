// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"grimm.is/midonet/internal/errors"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/wildcard"
)

// Verdict is the outcome of evaluating a chain.
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictDrop
	VerdictReject
	VerdictErrorDrop
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictDrop:
		return "drop"
	case VerdictReject:
		return "reject"
	case VerdictErrorDrop:
		return "error-drop"
	default:
		return "unknown"
	}
}

// internalVerdict extends Verdict with a RETURN signal that only matters
// while unwinding a JUMP; Apply never surfaces it to callers.
type internalVerdict int

const (
	ivAccept = internalVerdict(VerdictAccept)
	ivDrop   = internalVerdict(VerdictDrop)
	ivReject = internalVerdict(VerdictReject)
	ivError  = internalVerdict(VerdictErrorDrop)
	ivReturn = internalVerdict(1000)
)

func (v internalVerdict) toVerdict() Verdict {
	if v == ivReturn {
		return VerdictAccept
	}
	return Verdict(v)
}

// MaxJumpDepth bounds recursive JUMP evaluation; exceeding it yields ErrorDrop.
const MaxJumpDepth = 16

// Tracer receives a per-chain trace line when the simulation is
// trace-enabled. It matches packetctx.Context.Trace's shape without
// requiring rules to import packetctx.
type Tracer func(ownerID, message string)

// Evaluator applies rule chains against a match, resolving JUMP targets
// through a ChainFetcher.
type Evaluator struct {
	fetcher ChainFetcher
	logger  *logging.Logger
}

// New builds an Evaluator backed by fetcher.
func New(fetcher ChainFetcher) *Evaluator {
	return &Evaluator{
		fetcher: fetcher,
		logger:  logging.WithComponent("rules"),
	}
}

// Apply evaluates chain against m. ownerID identifies the device or port
// the chain belongs to, for tracing. isPortFilter is passed down through
// JUMPs but changes neither the verdict nor the trace text; port filters
// and device chains share the same default (ACCEPT on exhaustion).
func (e *Evaluator) Apply(chain *Chain, m *wildcard.Match, ownerID string, isPortFilter bool, trace Tracer) Verdict {
	return e.apply(chain, m, ownerID, isPortFilter, trace, 0).toVerdict()
}

func (e *Evaluator) apply(chain *Chain, m *wildcard.Match, ownerID string, isPortFilter bool, trace Tracer, depth int) internalVerdict {
	if depth > MaxJumpDepth {
		e.trace(trace, ownerID, "jump depth exceeded")
		return ivError
	}

	for _, rule := range chain.Rules {
		if !rule.Condition(m) {
			continue
		}

		if rule.Action.NAT != nil {
			rule.Action.NAT.Apply(m)
		}

		switch rule.Action.Tag {
		case ActionAccept:
			e.trace(trace, ownerID, "rule "+rule.ID+" accept")
			return ivAccept
		case ActionDrop:
			e.trace(trace, ownerID, "rule "+rule.ID+" drop")
			return ivDrop
		case ActionReject:
			e.trace(trace, ownerID, "rule "+rule.ID+" reject")
			return ivReject
		case ActionReturn:
			e.trace(trace, ownerID, "rule "+rule.ID+" return")
			return ivReturn
		case ActionContinue:
			continue
		case ActionJump:
			target, ok := e.fetcher.Chain(rule.Action.JumpTarget)
			if !ok {
				err := errors.Errorf(errors.KindNotFound, "jump target chain %s missing", rule.Action.JumpTarget)
				e.logger.WithError(err).Warn("rule chain error", "owner", ownerID, "rule", rule.ID)
				e.trace(trace, ownerID, "rule "+rule.ID+" jump target missing")
				return ivError
			}
			sub := e.apply(target, m, ownerID, isPortFilter, trace, depth+1)
			if sub == ivReturn {
				// Target RETURNed: resume this chain at the next rule.
				continue
			}
			return sub
		}
	}

	// Chain exhausted: default ACCEPT for filter chains.
	return ivAccept
}

func (e *Evaluator) trace(t Tracer, ownerID, msg string) {
	if t != nil {
		t(ownerID, msg)
	}
}
