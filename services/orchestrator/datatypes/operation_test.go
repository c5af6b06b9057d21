// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationStatus_Terminal(t *testing.T) {
	assert.False(t, OperationPending.Terminal())
	assert.False(t, OperationRunning.Terminal())
	assert.True(t, OperationCompleted.Terminal())
	assert.True(t, OperationFailed.Terminal())
	assert.True(t, OperationCancelled.Terminal())
}

func TestOperation_Validate_Valid(t *testing.T) {
	op := Operation{ID: "op_training_1_abc", Type: OperationTraining, Status: OperationRunning}
	require.NoError(t, op.Validate())
}

func TestOperation_Validate_MissingID(t *testing.T) {
	op := Operation{Type: OperationTraining, Status: OperationPending}
	err := op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestOperation_Validate_UnrecognizedType(t *testing.T) {
	op := Operation{ID: "op_x_1_abc", Type: "BOGUS", Status: OperationPending}
	err := op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a recognized operation type")
}

func TestOperation_Validate_UnrecognizedStatus(t *testing.T) {
	op := Operation{ID: "op_x_1_abc", Type: OperationTraining, Status: "BOGUS"}
	err := op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a recognized operation status")
}

func TestOperation_Validate_FailedWithoutErrorMessage(t *testing.T) {
	op := Operation{ID: "op_x_1_abc", Type: OperationTraining, Status: OperationFailed}
	err := op.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_message is not set")
}

func TestOperation_Validate_FailedWithErrorMessage(t *testing.T) {
	msg := "LLM request failed: timeout"
	op := Operation{ID: "op_x_1_abc", Type: OperationTraining, Status: OperationFailed, ErrorMessage: &msg}
	require.NoError(t, op.Validate())
}
