// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry implements the in-memory operation registry: the single
// place an Operation's lifecycle is created, advanced, and resolved. A
// mutex-guarded map holds each operation alongside a per-operation
// cancellation channel.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/observability"
)

// Registry tracks every Operation created during the process lifetime.
//
// Registry is the sole writer of Operation.Status/ProgressPercent/
// ProgressMessage/ResultSummary/ErrorMessage; callers only ever observe a
// point-in-time copy via Get.
type Registry struct {
	mu      sync.Mutex
	ops     map[string]*datatypes.Operation
	cancels map[string]chan struct{}
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		ops:     make(map[string]*datatypes.Operation),
		cancels: make(map[string]chan struct{}),
	}
}

// newOperationID mints an id of the form op_<type>_<timestamp>_<random>,
// where random is the first 8 characters of a uuid4's hex digits.
func newOperationID(opType datatypes.OperationType) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("op_%s_%d_%s", opType, time.Now().UnixNano(), random)
}

// Create registers a new PENDING operation and returns its id.
func (r *Registry) Create(opType datatypes.OperationType, parentOperationID *string, metadata map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newOperationID(opType)
	now := time.Now()
	r.ops[id] = &datatypes.Operation{
		ID:                id,
		Type:              opType,
		Status:            datatypes.OperationPending,
		ParentOperationID: parentOperationID,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.cancels[id] = make(chan struct{})
	return id
}

// Start moves an operation from PENDING to RUNNING.
func (r *Registry) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return err
	}
	if op.Status != datatypes.OperationPending {
		return fmt.Errorf("operation %s: cannot start from status %s", id, op.Status)
	}
	op.Status = datatypes.OperationRunning
	op.UpdatedAt = time.Now()
	return nil
}

// UpdateProgress records a progress percent and/or message for a RUNNING
// operation. Either argument may be nil to leave that field untouched.
func (r *Registry) UpdateProgress(id string, percent *int, message *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return err
	}
	if op.Status.Terminal() {
		return fmt.Errorf("operation %s: cannot update progress, already %s", id, op.Status)
	}
	if percent != nil {
		op.ProgressPercent = percent
	}
	if message != nil {
		op.ProgressMessage = message
	}
	op.UpdatedAt = time.Now()
	return nil
}

// Complete resolves an operation to COMPLETED with the given result summary.
//
// A second call on an already-terminal operation is idempotent: it logs a
// warning and returns nil without altering the recorded terminal state.
func (r *Registry) Complete(id string, resultSummary map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return err
	}
	if op.Status.Terminal() {
		slog.Warn("ignoring Complete on already-terminal operation", "operation_id", id, "status", op.Status)
		return nil
	}
	op.Status = datatypes.OperationCompleted
	op.ResultSummary = resultSummary
	op.UpdatedAt = time.Now()
	observability.RecordOperation(string(op.Type), string(op.Status))
	return nil
}

// Fail resolves an operation to FAILED with the given error message. A
// partial result summary may be attached so token usage already incurred
// is not lost for cost accounting.
//
// A second call on an already-terminal operation is idempotent: it logs a
// warning and returns nil without altering the recorded terminal state.
func (r *Registry) Fail(id string, errMessage string, partialSummary map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return err
	}
	if op.Status.Terminal() {
		slog.Warn("ignoring Fail on already-terminal operation", "operation_id", id, "status", op.Status)
		return nil
	}
	op.Status = datatypes.OperationFailed
	op.ErrorMessage = &errMessage
	if partialSummary != nil {
		op.ResultSummary = partialSummary
	}
	op.UpdatedAt = time.Now()
	observability.RecordOperation(string(op.Type), string(op.Status))
	return nil
}

// Cancel resolves an operation to CANCELLED and closes its cancellation
// channel, waking anything selecting on GetCancellationToken.
//
// A second call on an already-terminal operation is idempotent: it logs a
// warning and returns nil without altering the recorded terminal state.
func (r *Registry) Cancel(id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return err
	}
	if op.Status.Terminal() {
		slog.Warn("ignoring Cancel on already-terminal operation", "operation_id", id, "status", op.Status)
		return nil
	}
	op.Status = datatypes.OperationCancelled
	if reason != "" {
		op.ErrorMessage = &reason
	}
	op.UpdatedAt = time.Now()
	observability.RecordOperation(string(op.Type), string(op.Status))
	if ch, ok := r.cancels[id]; ok {
		close(ch)
		delete(r.cancels, id)
	}
	return nil
}

// Get returns a copy of the current state of an operation.
func (r *Registry) Get(id string) (datatypes.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.mustGetLocked(id)
	if err != nil {
		return datatypes.Operation{}, err
	}
	return *op, nil
}

// GetCancellationToken returns a context that is cancelled when the
// operation transitions to CANCELLED, and a release function that must be
// called once the caller stops watching it.
func (r *Registry) GetCancellationToken(ctx context.Context, id string) (context.Context, context.CancelFunc, error) {
	r.mu.Lock()
	ch, ok := r.cancels[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("operation %s: not found or already terminal", id)
	}

	derived, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-derived.Done():
		}
	}()
	return derived, cancel, nil
}

func (r *Registry) mustGetLocked(id string) (*datatypes.Operation, error) {
	op, ok := r.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %s: not found", id)
	}
	return op, nil
}
