// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

// State is the lifecycle state of a run.
type State int

const (
	// StateBuilding assembles and writes the executable unit.
	StateBuilding State = iota

	// StateLaunching starts the runner process.
	StateLaunching

	// StateRunning waits for the runner to exit while its output is captured.
	StateRunning

	// StateDraining decodes the captured output.
	StateDraining

	// StateCompleted means the runner exited zero.
	StateCompleted

	// StateFailed means the run could not launch, exited non-zero, timed out
	// or was canceled.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Completed and Failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions lists the legal successor states.
var transitions = map[State][]State{
	StateBuilding:  {StateLaunching, StateFailed},
	StateLaunching: {StateRunning, StateFailed},
	StateRunning:   {StateDraining},
	StateDraining:  {StateCompleted, StateFailed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
