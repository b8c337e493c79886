// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package coordinator is the core's nucleus: it orchestrates the Packet
// Context, Topology Cache Client, Rule Chain Evaluator, Device Processors,
// and Action Interpreter into one per-packet simulation, enforces the
// traversal budget, computes the match-diff, and produces the final
// SimulationResult.
package coordinator

import "time"

// Tunables are treated as configuration; the defaults match the historical
// system (spec §6).
type Tunables struct {
	MaxDevicesTraversed  int
	LoopVisitThreshold    int
	TemporaryDropMillis  int64
	IdleExpirationMillis int64
	ReturnFlowExpirationMillis int64
	MinVNI               uint32
	MaxVNI               uint32
}

// DefaultTunables returns the spec's defaults.
func DefaultTunables() Tunables {
	return Tunables{
		MaxDevicesTraversed:        12,
		LoopVisitThreshold:         2,
		TemporaryDropMillis:        5_000,
		IdleExpirationMillis:       60_000,
		ReturnFlowExpirationMillis: 60_000,
		MinVNI:                     10_000,
		MaxVNI:                     0x00FF_FFFF,
	}
}

func millis(d int64) time.Duration { return time.Duration(d) * time.Millisecond }
