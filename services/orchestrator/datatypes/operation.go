// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"time"
)

// OperationType names the kind of background job an Operation tracks.
type OperationType string

const (
	OperationAgentDesign     OperationType = "AGENT_DESIGN"
	OperationTraining        OperationType = "TRAINING"
	OperationBacktest        OperationType = "BACKTEST"
	OperationAgentAssessment OperationType = "AGENT_ASSESSMENT"
)

// OperationStatus is an Operation's position in its lifecycle.
type OperationStatus string

const (
	OperationPending   OperationStatus = "PENDING"
	OperationRunning   OperationStatus = "RUNNING"
	OperationCompleted OperationStatus = "COMPLETED"
	OperationFailed    OperationStatus = "FAILED"
	OperationCancelled OperationStatus = "CANCELLED"
)

// Terminal reports whether s is one of the lifecycle's terminal states.
func (s OperationStatus) Terminal() bool {
	return s == OperationCompleted || s == OperationFailed || s == OperationCancelled
}

// Operation is an in-memory record of one child job tracked by the registry.
//
// # Description
//
// Operations are created PENDING, attached to a background task and moved to
// RUNNING by start, and resolved to COMPLETED, FAILED, or CANCELLED exactly
// once. The registry is the only writer; callers observe Operation values as
// point-in-time snapshots (see registry.Registry.Get).
//
// # Fields
//
//   - ID: opaque string id, scheme `op_<type>_<timestamp>_<random>`.
//   - ParentOperationID: set for child operations nested under a parent cycle
//     (e.g. the design/assessment workers' child operations).
//   - Metadata: arbitrary parameters recorded at creation time.
//   - ProgressPercent / ProgressMessage: optional, updated while RUNNING.
//   - ResultSummary: structured metrics, set on COMPLETED (and may also be
//     partially populated on FAILED/CANCELLED to preserve partial token
//     counts for cost accounting).
//   - ErrorMessage: set on FAILED.
type Operation struct {
	ID                string
	Type              OperationType
	Status            OperationStatus
	ParentOperationID *string
	Metadata          map[string]any
	ProgressPercent   *int
	ProgressMessage   *string
	ResultSummary     map[string]any
	ErrorMessage      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks an Operation's internal consistency.
func (o *Operation) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch o.Type {
	case OperationAgentDesign, OperationTraining, OperationBacktest, OperationAgentAssessment:
	default:
		return fmt.Errorf("type %q is not a recognized operation type", o.Type)
	}
	switch o.Status {
	case OperationPending, OperationRunning, OperationCompleted, OperationFailed, OperationCancelled:
	default:
		return fmt.Errorf("status %q is not a recognized operation status", o.Status)
	}
	if o.Status == OperationFailed && o.ErrorMessage == nil {
		return fmt.Errorf("status is FAILED but error_message is not set")
	}
	return nil
}

// Action is an append-only audit record of one tool call made during an
// agentic loop run. Never read by the reconciler; used for audit and cost
// accounting only.
type Action struct {
	ID           int64
	SessionID    int64
	ToolName     string
	ToolArgs     map[string]any
	Result       map[string]any
	CreatedAt    time.Time
	InputTokens  *int
	OutputTokens *int
}
