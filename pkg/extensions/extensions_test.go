// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	require.NotNil(t, opts.TrainingStarter)
	require.NotNil(t, opts.BacktestStarter)
	require.NotNil(t, opts.OperationStatus)
	require.NotNil(t, opts.IndicatorCatalog)
	require.NotNil(t, opts.SymbolCatalog)
	require.NotNil(t, opts.StrategyValidator)

	_, ok := opts.TrainingStarter.(NopTrainingStarter)
	assert.True(t, ok)
	_, ok = opts.BacktestStarter.(NopBacktestStarter)
	assert.True(t, ok)
	_, ok = opts.OperationStatus.(NopOperationStatusProvider)
	assert.True(t, ok)
	_, ok = opts.IndicatorCatalog.(NopIndicatorCatalog)
	assert.True(t, ok)
	_, ok = opts.SymbolCatalog.(NopSymbolCatalog)
	assert.True(t, ok)
	_, ok = opts.StrategyValidator.(NopStrategyValidator)
	assert.True(t, ok)
}

type mockTrainingStarter struct{}

func (mockTrainingStarter) StartTraining(context.Context, string, []string, []string, string, string) (JobHandle, error) {
	return JobHandle{Success: true, OperationID: "op_training_1"}, nil
}

func TestServiceOptions_WithTrainingStarter(t *testing.T) {
	original := DefaultOptions()
	custom := mockTrainingStarter{}

	updated := original.WithTrainingStarter(custom)

	assert.Equal(t, custom, updated.TrainingStarter)
	_, originalIsNop := original.TrainingStarter.(NopTrainingStarter)
	assert.True(t, originalIsNop, "WithTrainingStarter must not mutate the receiver")
	assert.NotNil(t, updated.BacktestStarter, "other fields should be preserved")
}

func TestServiceOptions_WithBacktestStarter(t *testing.T) {
	original := DefaultOptions()
	custom := NopBacktestStarter{}

	updated := original.WithBacktestStarter(custom)

	assert.Equal(t, custom, updated.BacktestStarter)
}

func TestServiceOptions_WithOperationStatus(t *testing.T) {
	original := DefaultOptions()
	updated := original.WithOperationStatus(NopOperationStatusProvider{})
	assert.NotNil(t, updated.OperationStatus)
}

func TestServiceOptions_WithIndicatorCatalog(t *testing.T) {
	original := DefaultOptions()
	updated := original.WithIndicatorCatalog(NopIndicatorCatalog{})
	assert.NotNil(t, updated.IndicatorCatalog)
}

func TestServiceOptions_WithSymbolCatalog(t *testing.T) {
	original := DefaultOptions()
	updated := original.WithSymbolCatalog(NopSymbolCatalog{})
	assert.NotNil(t, updated.SymbolCatalog)
}

func TestServiceOptions_WithStrategyValidator(t *testing.T) {
	original := DefaultOptions()
	updated := original.WithStrategyValidator(NopStrategyValidator{})
	assert.NotNil(t, updated.StrategyValidator)
}

func TestNopTrainingStarter_Refuses(t *testing.T) {
	handle, err := NopTrainingStarter{}.StartTraining(context.Background(), "s1", nil, nil, "", "")
	require.NoError(t, err)
	assert.False(t, handle.Success)
	assert.NotEmpty(t, handle.Error)
}

func TestNopBacktestStarter_Refuses(t *testing.T) {
	handle, err := NopBacktestStarter{}.StartBacktest(context.Background(), "s1", "model.pt", nil, nil, "", "")
	require.NoError(t, err)
	assert.False(t, handle.Success)
	assert.NotEmpty(t, handle.Error)
}

func TestNopOperationStatusProvider_NotFound(t *testing.T) {
	_, err := NopOperationStatusProvider{}.GetOperation(context.Background(), "op_1")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestNopIndicatorCatalog_Empty(t *testing.T) {
	indicators, err := NopIndicatorCatalog{}.ListIndicators(context.Background())
	require.NoError(t, err)
	assert.Empty(t, indicators)
}

func TestNopSymbolCatalog_Empty(t *testing.T) {
	symbols, err := NopSymbolCatalog{}.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestNopStrategyValidator_AlwaysValid(t *testing.T) {
	result, err := NopStrategyValidator{}.Validate(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = NopStrategyValidator{}.CheckNameUnique(context.Background(), "s1", "/tmp/strategies")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
