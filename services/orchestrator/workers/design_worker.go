// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workers

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/services/llm"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/observability"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/registry"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/store"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/tools"
)

// DesignWorker runs the strategy-design phase of one research cycle. It is
// the sole writer of a session's StrategyName and of the
// DESIGNING → {DESIGNED, COMPLETE} phase transition: the session carries no
// operation id while DESIGNING (datatypes.Session.Validate forbids it
// outside TRAINING/BACKTESTING), so the reconciler has no way to poll this
// phase's completion itself and instead leaves it entirely to the worker,
// which advances the phase on success and fails the session on failure.
type DesignWorker struct {
	registry *registry.Registry
	store    store.Store
	invoker  *llm.Invoker
	opts     extensions.ServiceOptions
	recent   tools.RecentStrategiesReader

	strategiesDir string
}

// NewDesignWorker builds a DesignWorker wired to its collaborators.
func NewDesignWorker(reg *registry.Registry, st store.Store, invoker *llm.Invoker, opts extensions.ServiceOptions, strategiesDir string) *DesignWorker {
	return &DesignWorker{
		registry:      reg,
		store:         st,
		invoker:       invoker,
		opts:          opts,
		recent:        tools.FilesystemRecentStrategies{},
		strategiesDir: strategiesDir,
	}
}

// Run executes the design worker for sessionID, registering a child
// AGENT_DESIGN operation under parentOperationID.
func (w *DesignWorker) Run(ctx context.Context, sessionID int64, parentOperationID, brief string) {
	childID := w.registry.Create(datatypes.OperationAgentDesign, &parentOperationID, map[string]any{
		"parent_operation_id": parentOperationID,
		"session_id":          sessionID,
	})
	if err := w.registry.Start(childID); err != nil {
		slog.Error("design worker: failed to start child operation", "operation_id", childID, "error", err)
		return
	}

	cancelCtx, cancel, err := w.registry.GetCancellationToken(ctx, childID)
	if err != nil {
		slog.Error("design worker: failed to get cancellation token", "operation_id", childID, "error", err)
		return
	}
	defer cancel()

	indicators, err := w.opts.IndicatorCatalog.ListIndicators(cancelCtx)
	if err != nil {
		slog.Warn("design worker: failed to list indicators", "error", err)
	}
	symbols, err := w.opts.SymbolCatalog.ListSymbols(cancelCtx)
	if err != nil {
		slog.Warn("design worker: failed to list symbols", "error", err)
	}
	recentStrategies, err := w.recent.ListRecentStrategies(cancelCtx, w.strategiesDir, 5)
	if err != nil {
		slog.Warn("design worker: failed to list recent strategies", "error", err)
	}

	slog.Info("design worker: context gathered",
		"indicators", len(indicators), "symbols", len(symbols), "recent_strategies", len(recentStrategies))

	system, user := BuildDesignPrompt(brief, indicators, symbols, recentStrategies)

	executor := tools.NewExecutor(w.strategiesDir, w.opts, w.recent)
	result := w.invoker.Run(cancelCtx, system, user, tools.DesignPhaseTools(), executor.Execute)
	observability.RecordTokens(result.InputTokensTotal, result.OutputTokensTotal, w.invoker.Model())

	tokenSummary := map[string]any{
		"input_tokens":  result.InputTokensTotal,
		"output_tokens": result.OutputTokensTotal,
	}

	if !result.Success {
		w.terminate(ctx, childID, sessionID, result.Error, tokenSummary, datatypes.OutcomeFailedDesign)
		return
	}

	name, path, ok := executor.LastSavedStrategy()
	if !ok {
		const reason = "agent did not save a strategy configuration"
		w.terminate(ctx, childID, sessionID, reason, tokenSummary, datatypes.OutcomeFailedDesign)
		return
	}

	tokenSummary["strategy_name"] = name
	tokenSummary["strategy_path"] = path
	if err := w.registry.Complete(childID, tokenSummary); err != nil {
		slog.Error("design worker: failed to complete child operation", "operation_id", childID, "error", err)
	}

	if err := w.store.UpdateStrategy(ctx, sessionID, name); err != nil {
		slog.Error("design worker: failed to record strategy name", "session_id", sessionID, "error", err)
		outcome := datatypes.OutcomeFailedDesign
		_ = w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseDesigning, datatypes.PhaseComplete, nil, &outcome)
		return
	}
	if err := w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseDesigning, datatypes.PhaseDesigned, nil, nil); err != nil {
		slog.Error("design worker: failed to transition session to DESIGNED", "session_id", sessionID, "error", err)
	}

	slog.Info("design worker: completed", "session_id", sessionID, "strategy_name", name,
		"input_tokens", result.InputTokensTotal, "output_tokens", result.OutputTokensTotal)
}

func (w *DesignWorker) terminate(ctx context.Context, childID string, sessionID int64, errText string, partialSummary map[string]any, defaultOutcome datatypes.Outcome) {
	if isCancellation(errText) {
		if err := w.registry.Cancel(childID, errText); err != nil {
			slog.Error("design worker: failed to cancel child operation", "operation_id", childID, "error", err)
		}
	} else if err := w.registry.Fail(childID, errText, partialSummary); err != nil {
		slog.Error("design worker: failed to fail child operation", "operation_id", childID, "error", err)
	}

	outcome := classifyFailureOutcome(errText, defaultOutcome)
	if err := w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseDesigning, datatypes.PhaseComplete, nil, &outcome); err != nil {
		slog.Error("design worker: failed to complete session", "session_id", sessionID, "error", err)
	}
	slog.Warn("design worker: terminated", "session_id", sessionID, "error", errText, "outcome", outcome)
}
