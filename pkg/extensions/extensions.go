// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the external-collaborator interfaces the
// orchestrator consumes via dependency injection — training and backtest
// starters, operation status, the indicator/symbol catalogs, and the
// strategy validator. None of their internals are implemented in this
// module; orchestrator.New accepts a ServiceOptions of these interfaces and
// falls back to inert no-op defaults for whichever the caller does not
// provide.
package extensions

import "errors"

// ErrOperationNotFound is returned by an OperationStatusProvider when asked
// about an id it has no record of.
var ErrOperationNotFound = errors.New("operation not found")

// ServiceOptions groups every external collaborator the orchestrator needs.
//
// All fields are optional; DefaultOptions returns no-op implementations
// that refuse to start jobs and report empty catalogs, so a service
// constructed with DefaultOptions runs but never completes a research
// cycle — callers must inject real collaborators to do useful work.
type ServiceOptions struct {
	TrainingStarter   TrainingStarter
	BacktestStarter   BacktestStarter
	OperationStatus   OperationStatusProvider
	IndicatorCatalog  IndicatorCatalog
	SymbolCatalog     SymbolCatalog
	StrategyValidator StrategyValidator
}

// DefaultOptions returns ServiceOptions with no-op defaults for every
// collaborator.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		TrainingStarter:   NopTrainingStarter{},
		BacktestStarter:   NopBacktestStarter{},
		OperationStatus:   NopOperationStatusProvider{},
		IndicatorCatalog:  NopIndicatorCatalog{},
		SymbolCatalog:     NopSymbolCatalog{},
		StrategyValidator: NopStrategyValidator{},
	}
}

// WithTrainingStarter returns a copy of opts with the given TrainingStarter.
func (opts ServiceOptions) WithTrainingStarter(s TrainingStarter) ServiceOptions {
	opts.TrainingStarter = s
	return opts
}

// WithBacktestStarter returns a copy of opts with the given BacktestStarter.
func (opts ServiceOptions) WithBacktestStarter(s BacktestStarter) ServiceOptions {
	opts.BacktestStarter = s
	return opts
}

// WithOperationStatus returns a copy of opts with the given
// OperationStatusProvider.
func (opts ServiceOptions) WithOperationStatus(p OperationStatusProvider) ServiceOptions {
	opts.OperationStatus = p
	return opts
}

// WithIndicatorCatalog returns a copy of opts with the given IndicatorCatalog.
func (opts ServiceOptions) WithIndicatorCatalog(c IndicatorCatalog) ServiceOptions {
	opts.IndicatorCatalog = c
	return opts
}

// WithSymbolCatalog returns a copy of opts with the given SymbolCatalog.
func (opts ServiceOptions) WithSymbolCatalog(c SymbolCatalog) ServiceOptions {
	opts.SymbolCatalog = c
	return opts
}

// WithStrategyValidator returns a copy of opts with the given
// StrategyValidator.
func (opts ServiceOptions) WithStrategyValidator(v StrategyValidator) ServiceOptions {
	opts.StrategyValidator = v
	return opts
}
