// Package models defines round state management structures for Yenta flows.
package models

import "fmt"

// RoundStateKind discriminates the round state variants.
type RoundStateKind int

const (
	// RoundNotStartedKind is a round created but not yet begun.
	RoundNotStartedKind RoundStateKind = iota
	// RoundInProgressKind is a round mid-intake at a specific step.
	RoundInProgressKind
	// RoundCompletedKind is a round with every required field satisfied.
	RoundCompletedKind
)

// RoundState is a tagged representation of a round's status and step,
// making invalid status/step combinations unrepresentable in flow code.
type RoundState struct {
	kind RoundStateKind
	step int // meaningful only for RoundInProgressKind
}

// RoundNotStarted returns the not-started state.
func RoundNotStarted() RoundState {
	return RoundState{kind: RoundNotStartedKind}
}

// RoundInProgress returns an in-progress state at the given step (clamped to 1..TotalSteps).
func RoundInProgress(step int) RoundState {
	if step < 1 {
		step = 1
	}
	if step > TotalSteps {
		step = TotalSteps
	}
	return RoundState{kind: RoundInProgressKind, step: step}
}

// RoundCompleted returns the completed state.
func RoundCompleted() RoundState {
	return RoundState{kind: RoundCompletedKind, step: TotalSteps}
}

// RoundStateFrom parses the persisted status/step pair into a RoundState.
func RoundStateFrom(status RoundStatus, step int) (RoundState, error) {
	switch status {
	case RoundStatusNotStarted:
		return RoundNotStarted(), nil
	case RoundStatusInProgress:
		if step < 1 || step > TotalSteps {
			return RoundState{}, fmt.Errorf("invalid step %d for in-progress round", step)
		}
		return RoundInProgress(step), nil
	case RoundStatusCompleted:
		return RoundCompleted(), nil
	default:
		return RoundState{}, fmt.Errorf("invalid round status %q", status)
	}
}

// Kind returns the state variant.
func (s RoundState) Kind() RoundStateKind { return s.kind }

// Step returns the current intake step. Completed rounds report TotalSteps,
// not-started rounds report 1 (the step intake would begin at).
func (s RoundState) Step() int {
	switch s.kind {
	case RoundInProgressKind, RoundCompletedKind:
		return s.step
	default:
		return 1
	}
}

// Status returns the persisted status string for the state.
func (s RoundState) Status() RoundStatus {
	switch s.kind {
	case RoundInProgressKind:
		return RoundStatusInProgress
	case RoundCompletedKind:
		return RoundStatusCompleted
	default:
		return RoundStatusNotStarted
	}
}
