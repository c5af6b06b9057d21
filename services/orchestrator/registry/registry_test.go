// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

func TestCreate_IDScheme(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationAgentDesign, nil, nil)
	assert.True(t, strings.HasPrefix(id, "op_AGENT_DESIGN_"))

	op, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OperationPending, op.Status)
}

func TestLifecycle_HappyPath(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationTraining, nil, map[string]any{"strategy": "s1"})

	require.NoError(t, r.Start(id))
	op, _ := r.Get(id)
	assert.Equal(t, datatypes.OperationRunning, op.Status)

	pct := 50
	msg := "halfway"
	require.NoError(t, r.UpdateProgress(id, &pct, &msg))
	op, _ = r.Get(id)
	require.NotNil(t, op.ProgressPercent)
	assert.Equal(t, 50, *op.ProgressPercent)
	require.NotNil(t, op.ProgressMessage)
	assert.Equal(t, "halfway", *op.ProgressMessage)

	require.NoError(t, r.Complete(id, map[string]any{"accuracy": 0.6}))
	op, _ = r.Get(id)
	assert.Equal(t, datatypes.OperationCompleted, op.Status)
	assert.Equal(t, 0.6, op.ResultSummary["accuracy"])
}

func TestFail_PreservesPartialSummary(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationBacktest, nil, nil)
	require.NoError(t, r.Start(id))
	require.NoError(t, r.Fail(id, "boom", map[string]any{"input_tokens": 120}))

	op, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OperationFailed, op.Status)
	require.NotNil(t, op.ErrorMessage)
	assert.Equal(t, "boom", *op.ErrorMessage)
	assert.Equal(t, 120, op.ResultSummary["input_tokens"])
}

func TestTerminalTransitionsAreIdempotent(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationAgentAssessment, nil, map[string]any{"accuracy": 0.9})
	require.NoError(t, r.Start(id))
	require.NoError(t, r.Complete(id, map[string]any{"accuracy": 0.9}))

	assert.NoError(t, r.Complete(id, map[string]any{"accuracy": 0.1}))
	assert.NoError(t, r.Fail(id, "late", nil))
	assert.NoError(t, r.Cancel(id, "late"))

	op, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OperationCompleted, op.Status)
	assert.Equal(t, 0.9, op.ResultSummary["accuracy"])
}

func TestCancel_ClosesCancellationToken(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationAgentDesign, nil, nil)
	require.NoError(t, r.Start(id))

	tok, release, err := r.GetCancellationToken(context.Background(), id)
	require.NoError(t, err)
	defer release()

	require.NoError(t, r.Cancel(id, "parent cancelled"))

	select {
	case <-tok.Done():
	default:
		t.Fatal("expected cancellation token to be done after Cancel")
	}

	op, _ := r.Get(id)
	assert.Equal(t, datatypes.OperationCancelled, op.Status)
	require.NotNil(t, op.ErrorMessage)
	assert.Equal(t, "parent cancelled", *op.ErrorMessage)
}

func TestGet_UnknownID(t *testing.T) {
	r := New()
	_, err := r.Get("op_does_not_exist")
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	id := r.Create(datatypes.OperationTraining, nil, nil)
	require.NoError(t, r.Start(id))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pct := n
			_ = r.UpdateProgress(id, &pct, nil)
		}(i)
	}
	wg.Wait()

	op, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OperationRunning, op.Status)
}
