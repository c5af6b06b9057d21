// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import "context"

// JobHandle is returned by TrainingStarter/BacktestStarter on a successful
// job submission.
type JobHandle struct {
	Success     bool
	OperationID string
	Error       string
}

// OperationStatus is the external job's status as observed through
// OperationStatusProvider.
type OperationStatus struct {
	Status        string
	ResultSummary map[string]any
	ErrorMessage  string
}

// TrainingStarter submits a training job for a saved strategy.
type TrainingStarter interface {
	StartTraining(ctx context.Context, strategyName string, symbols, timeframes []string, startDate, endDate string) (JobHandle, error)
}

// BacktestStarter submits a backtest job for a trained strategy.
type BacktestStarter interface {
	StartBacktest(ctx context.Context, strategyName, modelPath string, symbols, timeframes []string, startDate, endDate string) (JobHandle, error)
}

// OperationStatusProvider polls an externally-running job's status.
type OperationStatusProvider interface {
	GetOperation(ctx context.Context, operationID string) (OperationStatus, error)
}

// Indicator is one entry of the indicator catalog.
type Indicator struct {
	Name       string
	Type       string
	Parameters []string
}

// IndicatorCatalog is the read-only indicator listing.
type IndicatorCatalog interface {
	ListIndicators(ctx context.Context) ([]Indicator, error)
}

// Symbol is one entry of the symbol catalog.
type Symbol struct {
	Symbol     string
	Timeframes []string
	DateRange  string
}

// SymbolCatalog is the read-only trading-symbol listing.
type SymbolCatalog interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
}

// ValidationResult is the shape StrategyValidator returns.
type ValidationResult struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	Suggestions []string
}

// StrategyValidator validates a strategy configuration and checks
// name-uniqueness before a save.
type StrategyValidator interface {
	Validate(ctx context.Context, config map[string]any) (ValidationResult, error)
	CheckNameUnique(ctx context.Context, name, strategiesDir string) (ValidationResult, error)
}

// NopTrainingStarter always refuses, used when no real training backend is
// configured. Refusal (not a panic) keeps "starter refused" an ordinary
// failure outcome rather than a crash.
type NopTrainingStarter struct{}

func (NopTrainingStarter) StartTraining(context.Context, string, []string, []string, string, string) (JobHandle, error) {
	return JobHandle{Success: false, Error: "no training backend configured"}, nil
}

// NopBacktestStarter is the BacktestStarter analogue of NopTrainingStarter.
type NopBacktestStarter struct{}

func (NopBacktestStarter) StartBacktest(context.Context, string, string, []string, []string, string, string) (JobHandle, error) {
	return JobHandle{Success: false, Error: "no backtest backend configured"}, nil
}

// NopOperationStatusProvider reports every operation as not found.
type NopOperationStatusProvider struct{}

func (NopOperationStatusProvider) GetOperation(context.Context, string) (OperationStatus, error) {
	return OperationStatus{}, ErrOperationNotFound
}

// NopIndicatorCatalog returns an empty indicator list.
type NopIndicatorCatalog struct{}

func (NopIndicatorCatalog) ListIndicators(context.Context) ([]Indicator, error) { return nil, nil }

// NopSymbolCatalog returns an empty symbol list.
type NopSymbolCatalog struct{}

func (NopSymbolCatalog) ListSymbols(context.Context) ([]Symbol, error) { return nil, nil }

// NopStrategyValidator accepts every configuration and every name.
//
// This is a permissive default, not a safe one: wiring a real
// StrategyValidator is required before running against production data.
type NopStrategyValidator struct{}

func (NopStrategyValidator) Validate(context.Context, map[string]any) (ValidationResult, error) {
	return ValidationResult{Valid: true}, nil
}

func (NopStrategyValidator) CheckNameUnique(context.Context, string, string) (ValidationResult, error) {
	return ValidationResult{Valid: true}, nil
}

var (
	_ TrainingStarter         = NopTrainingStarter{}
	_ BacktestStarter         = NopBacktestStarter{}
	_ OperationStatusProvider = NopOperationStatusProvider{}
	_ IndicatorCatalog        = NopIndicatorCatalog{}
	_ SymbolCatalog           = NopSymbolCatalog{}
	_ StrategyValidator       = NopStrategyValidator{}
)
