// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the atlas analysis pipeline:
// stage states, the tagged stage value union, pipeline runs, the synthesized
// final record, and configuration.
package types

import (
	"errors"
	"fmt"
)

// StageState is the lifecycle state of one stage within a run.
type StageState string

const (
	StatePending StageState = "pending"
	StateWorking StageState = "working"
	StateDone    StageState = "done"
	StateError   StageState = "error"
)

// ErrIllegalTransition is returned when a stage state change would move
// backwards or leave a terminal state.
var ErrIllegalTransition = errors.New("illegal stage state transition")

// Terminal reports whether no further transition is possible.
func (s StageState) Terminal() bool {
	return s == StateDone || s == StateError
}

// CanTransition reports whether moving from s to next is legal.
// The only legal moves are pending→working, working→done and working→error.
func (s StageState) CanTransition(next StageState) bool {
	switch s {
	case StatePending:
		return next == StateWorking
	case StateWorking:
		return next == StateDone || next == StateError
	default:
		return false
	}
}

// RunStatus is the overall status of a PipelineRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Shape is the output contract a stage declares for its model response.
type Shape string

const (
	ShapeObject      Shape = "object"
	ShapeObjectArray Shape = "object_array"
	ShapeStringArray Shape = "string_array"
	ShapeDiagram     Shape = "diagram"
)

// Valid reports whether s is one of the known shapes.
func (s Shape) Valid() bool {
	switch s {
	case ShapeObject, ShapeObjectArray, ShapeStringArray, ShapeDiagram:
		return true
	}
	return false
}

func transitionError(id string, from, to StageState) error {
	return fmt.Errorf("stage %s: %s -> %s: %w", id, from, to, ErrIllegalTransition)
}
