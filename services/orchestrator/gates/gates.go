// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gates implements the quality-gate evaluator: pure functions that
// map a training or backtest result summary to a pass/fail verdict against
// thresholds read once at construction time and evaluated first-match-wins.
package gates

import (
	"fmt"
	"os"
	"strconv"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// TrainingGateConfig holds the thresholds the training gate evaluates against.
type TrainingGateConfig struct {
	MinAccuracy          float64
	MaxFinalLoss         float64
	MinLossReductionRatio float64
}

// BacktestGateConfig holds the thresholds the backtest gate evaluates against.
type BacktestGateConfig struct {
	MinWinRate     float64
	MaxDrawdown    float64
	MinSharpeRatio float64
}

// DefaultTrainingGateConfig returns the default training-gate thresholds.
func DefaultTrainingGateConfig() TrainingGateConfig {
	return TrainingGateConfig{
		MinAccuracy:           0.45,
		MaxFinalLoss:          0.8,
		MinLossReductionRatio: 0.2,
	}
}

// DefaultBacktestGateConfig returns the default backtest-gate thresholds.
func DefaultBacktestGateConfig() BacktestGateConfig {
	return BacktestGateConfig{
		MinWinRate:     0.45,
		MaxDrawdown:    0.4,
		MinSharpeRatio: -0.5,
	}
}

// TrainingGateConfigFromEnv loads TRAINING_GATE_* overrides from the
// environment, falling back to DefaultTrainingGateConfig for unset values.
func TrainingGateConfigFromEnv() TrainingGateConfig {
	cfg := DefaultTrainingGateConfig()
	cfg.MinAccuracy = getEnvFloat("TRAINING_GATE_MIN_ACCURACY", cfg.MinAccuracy)
	cfg.MaxFinalLoss = getEnvFloat("TRAINING_GATE_MAX_FINAL_LOSS", cfg.MaxFinalLoss)
	cfg.MinLossReductionRatio = getEnvFloat("TRAINING_GATE_MIN_LOSS_REDUCTION", cfg.MinLossReductionRatio)
	return cfg
}

// BacktestGateConfigFromEnv loads BACKTEST_GATE_* overrides from the
// environment, falling back to DefaultBacktestGateConfig for unset values.
func BacktestGateConfigFromEnv() BacktestGateConfig {
	cfg := DefaultBacktestGateConfig()
	cfg.MinWinRate = getEnvFloat("BACKTEST_GATE_MIN_WIN_RATE", cfg.MinWinRate)
	cfg.MaxDrawdown = getEnvFloat("BACKTEST_GATE_MAX_DRAWDOWN", cfg.MaxDrawdown)
	cfg.MinSharpeRatio = getEnvFloat("BACKTEST_GATE_MIN_SHARPE", cfg.MinSharpeRatio)
	return cfg
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// Evaluator evaluates the training and backtest gates against configuration
// loaded once at construction.
type Evaluator struct {
	training TrainingGateConfig
	backtest BacktestGateConfig
}

// NewEvaluator constructs an Evaluator with the given thresholds.
func NewEvaluator(training TrainingGateConfig, backtest BacktestGateConfig) *Evaluator {
	return &Evaluator{training: training, backtest: backtest}
}

// NewEvaluatorFromEnv constructs an Evaluator with thresholds read from the
// environment (or defaults where unset).
func NewEvaluatorFromEnv() *Evaluator {
	return NewEvaluator(TrainingGateConfigFromEnv(), BacktestGateConfigFromEnv())
}

// EvaluateTraining applies the training gate to a result summary.
//
// Passes iff accuracy >= min_accuracy, final_loss <= max_final_loss, and
// the loss reduction ratio >= min_loss_reduction_ratio. All comparisons are
// inclusive: a value exactly at the threshold passes. A missing field fails
// with a reason naming the field.
func (e *Evaluator) EvaluateTraining(r datatypes.TrainingResult) datatypes.GateVerdict {
	if r.Accuracy == nil {
		return fail("accuracy is missing from training result")
	}
	if r.FinalLoss == nil {
		return fail("final_loss is missing from training result")
	}
	if r.InitialLoss == nil {
		return fail("initial_loss is missing from training result")
	}

	if *r.Accuracy < e.training.MinAccuracy {
		return fail(fmt.Sprintf("accuracy %.4f is below the minimum %.4f", *r.Accuracy, e.training.MinAccuracy))
	}
	if *r.FinalLoss > e.training.MaxFinalLoss {
		return fail(fmt.Sprintf("final_loss %.4f exceeds the maximum %.4f", *r.FinalLoss, e.training.MaxFinalLoss))
	}
	if *r.InitialLoss == 0 {
		return fail("initial_loss is zero; loss reduction ratio is undefined")
	}
	reduction := (*r.InitialLoss - *r.FinalLoss) / *r.InitialLoss
	// The ratio is derived, so allow for float rounding: (1.0-0.8)/1.0 is
	// 0.19999999999999996 and must still count as exactly 0.2.
	const ratioTolerance = 1e-9
	if reduction < e.training.MinLossReductionRatio-ratioTolerance {
		return fail(fmt.Sprintf("loss reduction ratio %.4f is below the minimum %.4f", reduction, e.training.MinLossReductionRatio))
	}

	return datatypes.GateVerdict{Passed: true, Reason: fmt.Sprintf(
		"accuracy %.4f, final_loss %.4f, loss reduction %.4f all within thresholds",
		*r.Accuracy, *r.FinalLoss, reduction)}
}

// EvaluateBacktest applies the backtest gate to a result summary.
//
// Passes iff win_rate >= min_win_rate, max_drawdown <= max_drawdown, and
// sharpe_ratio >= min_sharpe_ratio. All comparisons are inclusive.
func (e *Evaluator) EvaluateBacktest(r datatypes.BacktestResult) datatypes.GateVerdict {
	if r.WinRate == nil {
		return fail("win_rate is missing from backtest result")
	}
	if r.MaxDrawdown == nil {
		return fail("max_drawdown is missing from backtest result")
	}
	if r.SharpeRatio == nil {
		return fail("sharpe_ratio is missing from backtest result")
	}

	if *r.WinRate < e.backtest.MinWinRate {
		return fail(fmt.Sprintf("win_rate %.4f is below the minimum %.4f", *r.WinRate, e.backtest.MinWinRate))
	}
	if *r.MaxDrawdown > e.backtest.MaxDrawdown {
		return fail(fmt.Sprintf("max_drawdown %.4f exceeds the maximum %.4f", *r.MaxDrawdown, e.backtest.MaxDrawdown))
	}
	if *r.SharpeRatio < e.backtest.MinSharpeRatio {
		return fail(fmt.Sprintf("sharpe_ratio %.4f is below the minimum %.4f", *r.SharpeRatio, e.backtest.MinSharpeRatio))
	}

	return datatypes.GateVerdict{Passed: true, Reason: fmt.Sprintf(
		"win_rate %.4f, max_drawdown %.4f, sharpe_ratio %.4f all within thresholds",
		*r.WinRate, *r.MaxDrawdown, *r.SharpeRatio)}
}

func fail(reason string) datatypes.GateVerdict {
	return datatypes.GateVerdict{Passed: false, Reason: reason}
}

// TrainingResultFromSummary extracts a TrainingResult from an operation's
// generic result-summary map.
func TrainingResultFromSummary(summary map[string]any) datatypes.TrainingResult {
	return datatypes.TrainingResult{
		Accuracy:    floatField(summary, "accuracy"),
		FinalLoss:   floatField(summary, "final_loss"),
		InitialLoss: floatField(summary, "initial_loss"),
		ModelPath:   stringField(summary, "model_path"),
	}
}

// BacktestResultFromSummary extracts a BacktestResult from an operation's
// generic result-summary map.
func BacktestResultFromSummary(summary map[string]any) datatypes.BacktestResult {
	return datatypes.BacktestResult{
		WinRate:     floatField(summary, "win_rate"),
		MaxDrawdown: floatField(summary, "max_drawdown"),
		SharpeRatio: floatField(summary, "sharpe_ratio"),
	}
}

func floatField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func stringField(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
