// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"testing"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestEvaluateTraining_Passes(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateTraining(datatypes.TrainingResult{
		Accuracy:    ptr(0.65),
		FinalLoss:   ptr(0.30),
		InitialLoss: ptr(1.00),
	})
	assert.True(t, v.Passed)
}

func TestEvaluateTraining_FailsOnAccuracy(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateTraining(datatypes.TrainingResult{
		Accuracy:    ptr(0.30),
		FinalLoss:   ptr(0.30),
		InitialLoss: ptr(1.00),
	})
	require.False(t, v.Passed)
	assert.Contains(t, v.Reason, "accuracy")
	assert.Contains(t, v.Reason, "0.30")
	assert.Contains(t, v.Reason, "0.45")
}

func TestEvaluateTraining_ExactThresholdPasses(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateTraining(datatypes.TrainingResult{
		Accuracy:    ptr(0.45), // exactly at threshold
		FinalLoss:   ptr(0.8),  // exactly at threshold
		InitialLoss: ptr(1.0),  // reduction ratio = 0.2, exactly at threshold
	})
	assert.True(t, v.Passed, "values exactly at threshold must pass (inclusive inequalities)")
}

func TestEvaluateTraining_MissingField(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateTraining(datatypes.TrainingResult{
		FinalLoss:   ptr(0.30),
		InitialLoss: ptr(1.00),
	})
	require.False(t, v.Passed)
	assert.Contains(t, v.Reason, "accuracy")
}

func TestEvaluateBacktest_Passes(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateBacktest(datatypes.BacktestResult{
		WinRate:     ptr(0.55),
		MaxDrawdown: ptr(0.15),
		SharpeRatio: ptr(0.80),
	})
	assert.True(t, v.Passed)
}

func TestEvaluateBacktest_FailsOnDrawdown(t *testing.T) {
	e := NewEvaluator(DefaultTrainingGateConfig(), DefaultBacktestGateConfig())
	v := e.EvaluateBacktest(datatypes.BacktestResult{
		WinRate:     ptr(0.55),
		MaxDrawdown: ptr(0.55),
		SharpeRatio: ptr(0.50),
	})
	require.False(t, v.Passed)
	assert.Contains(t, v.Reason, "drawdown")
}

func TestTrainingGateConfigFromEnv_Defaults(t *testing.T) {
	cfg := TrainingGateConfigFromEnv()
	assert.Equal(t, DefaultTrainingGateConfig(), cfg)
}

func TestTrainingGateConfigFromEnv_Override(t *testing.T) {
	t.Setenv("TRAINING_GATE_MIN_ACCURACY", "0.6")
	cfg := TrainingGateConfigFromEnv()
	assert.Equal(t, 0.6, cfg.MinAccuracy)
}

func TestResultFromSummary(t *testing.T) {
	summary := map[string]any{
		"accuracy":     0.65,
		"final_loss":   0.30,
		"initial_loss": 1.00,
		"model_path":   "/models/s1.pt",
	}
	r := TrainingResultFromSummary(summary)
	require.NotNil(t, r.Accuracy)
	assert.Equal(t, 0.65, *r.Accuracy)
	require.NotNil(t, r.ModelPath)
	assert.Equal(t, "/models/s1.pt", *r.ModelPath)
}
