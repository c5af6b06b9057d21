// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the persistent and in-flight record types shared
// across the orchestrator: sessions, operations, actions, and the tagged
// content-block messages exchanged with the LLM.
package datatypes

import (
	"fmt"
	"time"
)

// Phase is a research session's position in the state machine.
//
// # Description
//
// Ownership of a phase transition is split by who can observe its
// completion. DESIGNING → {DESIGNED, COMPLETE} and ASSESSING → COMPLETE are
// written by the worker running that phase, since a session carries no
// OperationID while DESIGNING or ASSESSING (see Validate) and so the
// reconciler has nothing to poll. Every other transition — DESIGNED →
// TRAINING, TRAINING → {BACKTESTING, COMPLETE}, BACKTESTING → {ASSESSING,
// COMPLETE} — is written by the trigger reconciler, which polls the
// OperationID it started (and also writes IDLE → DESIGNING when it opens a
// new cycle, and DESIGNED → COMPLETE when training cannot be started). See
// the Reconciler type's doc comment in the orchestrator's reconciler package.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseDesigning   Phase = "DESIGNING"
	PhaseDesigned    Phase = "DESIGNED"
	PhaseTraining    Phase = "TRAINING"
	PhaseBacktesting Phase = "BACKTESTING"
	PhaseAssessing   Phase = "ASSESSING"
	PhaseComplete    Phase = "COMPLETE"
)

// Valid reports whether p is one of the recognized phase values.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseDesigning, PhaseDesigned, PhaseTraining, PhaseBacktesting, PhaseAssessing, PhaseComplete:
		return true
	default:
		return false
	}
}

// Outcome is the terminal classification of a completed session.
type Outcome string

const (
	OutcomeSuccess            Outcome = "SUCCESS"
	OutcomeFailedDesign       Outcome = "FAILED_DESIGN"
	OutcomeFailedTraining     Outcome = "FAILED_TRAINING"
	OutcomeFailedTrainingGate Outcome = "FAILED_TRAINING_GATE"
	OutcomeFailedBacktest     Outcome = "FAILED_BACKTEST"
	OutcomeFailedBacktestGate Outcome = "FAILED_BACKTEST_GATE"
	OutcomeFailedAssessment   Outcome = "FAILED_ASSESSMENT"
	OutcomeFailedTimeout      Outcome = "FAILED_TIMEOUT"
	OutcomeFailedInterrupted  Outcome = "FAILED_INTERRUPTED"
	OutcomeCancelled          Outcome = "CANCELLED"
)

// Valid reports whether o is one of the recognized outcome values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailedDesign, OutcomeFailedTraining, OutcomeFailedTrainingGate,
		OutcomeFailedBacktest, OutcomeFailedBacktestGate, OutcomeFailedAssessment,
		OutcomeFailedTimeout, OutcomeFailedInterrupted, OutcomeCancelled:
		return true
	default:
		return false
	}
}

// Session is a persistent record of one end-to-end research cycle.
//
// # Description
//
// A Session tracks the cycle's phase, the strategy it designed (once known),
// the externally-running operation it is currently waiting on (if any), and,
// once terminal, the outcome and final assessment. StrategyName and the
// Assessment* fields are always written by a worker. Phase and Outcome are
// each written by whichever of the reconciler or the running worker owns
// that particular transition; see Phase.
//
// # Fields
//
//   - ID: opaque persistent identity, assigned by the store on creation.
//   - Phase: current position in the state machine.
//   - StrategyName: set once, during DESIGNING → DESIGNED; never changes after.
//   - OperationID: the id of the externally-running job; non-nil only while
//     Phase is TRAINING or BACKTESTING.
//   - Outcome: non-nil iff Phase is COMPLETE.
//   - AssessmentText / AssessmentMetrics: populated by the assessment worker
//     on a SUCCESS outcome.
//
// # Limitations
//
//   - A Session has no notion of priority or owner; the single-active-session
//     invariant is enforced by the reconciler, not by this type.
//
// # Assumptions
//
//   - Exactly one Session is active (Phase not in {IDLE, COMPLETE}) at a time.
type Session struct {
	ID                int64
	Phase             Phase
	StrategyName      *string
	OperationID       *string
	Outcome           *Outcome
	CreatedAt         time.Time
	UpdatedAt         time.Time
	AssessmentText    *string
	AssessmentMetrics map[string]any

	// TrainingResult carries the TRAINING operation's result summary forward
	// across the BACKTESTING phase, so the assessment worker can report on
	// both legs of the cycle even though the session's single OperationID
	// slot has by then been overwritten with the backtest operation's id.
	// Written once by the reconciler when the training gate passes.
	TrainingResult map[string]any
}

// IsActive reports whether the session currently holds the single-active-
// session slot, i.e. its phase is neither IDLE nor COMPLETE.
func (s *Session) IsActive() bool {
	return s.Phase != PhaseIdle && s.Phase != PhaseComplete
}

// Validate checks the session's field invariants.
//
// Returns an error naming the first invariant violated, in the style of
// datatypes.Validate() methods elsewhere in the codebase (sequential field
// checks, first failure wins).
func (s *Session) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("phase %q is not a recognized phase", s.Phase)
	}
	if s.Outcome != nil && s.Phase != PhaseComplete {
		return fmt.Errorf("outcome is set but phase is %q, not COMPLETE", s.Phase)
	}
	if s.Outcome == nil && s.Phase == PhaseComplete {
		return fmt.Errorf("phase is COMPLETE but outcome is not set")
	}
	if s.Outcome != nil && !s.Outcome.Valid() {
		return fmt.Errorf("outcome %q is not a recognized outcome", *s.Outcome)
	}
	if s.OperationID != nil && s.Phase != PhaseTraining && s.Phase != PhaseBacktesting {
		return fmt.Errorf("operation_id is set but phase is %q, not TRAINING or BACKTESTING", s.Phase)
	}
	return nil
}
