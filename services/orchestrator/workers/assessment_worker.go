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
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/services/llm"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/observability"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/registry"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/store"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/tools"
)

// AssessmentWorker runs the final, analytic phase of a research cycle (spec
// §4.6 "Assessment worker"). Like DesignWorker, it owns its own ASSESSING →
// COMPLETE phase transition directly, since a session carries no operation
// id while ASSESSING.
type AssessmentWorker struct {
	registry      *registry.Registry
	store         store.Store
	invoker       *llm.Invoker
	opts          extensions.ServiceOptions
	strategiesDir string
}

// NewAssessmentWorker builds an AssessmentWorker wired to its collaborators.
func NewAssessmentWorker(reg *registry.Registry, st store.Store, invoker *llm.Invoker, opts extensions.ServiceOptions, strategiesDir string) *AssessmentWorker {
	return &AssessmentWorker{
		registry:      reg,
		store:         st,
		invoker:       invoker,
		opts:          opts,
		strategiesDir: strategiesDir,
	}
}

// Run executes the assessment worker for sessionID, given the strategy name
// it is assessing and the completed training/backtest result summaries.
func (w *AssessmentWorker) Run(ctx context.Context, sessionID int64, parentOperationID, strategyName string, training, backtest map[string]any) {
	childID := w.registry.Create(datatypes.OperationAgentAssessment, &parentOperationID, map[string]any{
		"parent_operation_id": parentOperationID,
		"session_id":          sessionID,
		"strategy_name":       strategyName,
	})
	if err := w.registry.Start(childID); err != nil {
		slog.Error("assessment worker: failed to start child operation", "operation_id", childID, "error", err)
		return
	}

	cancelCtx, cancel, err := w.registry.GetCancellationToken(ctx, childID)
	if err != nil {
		slog.Error("assessment worker: failed to get cancellation token", "operation_id", childID, "error", err)
		return
	}
	defer cancel()

	system, user := BuildAssessmentPrompt(AssessmentInput{
		StrategyName: strategyName,
		Training:     training,
		Backtest:     backtest,
	})

	executor := tools.NewExecutor(w.strategiesDir, w.opts, nil)
	executor.SetCurrentStrategyName(strategyName)
	result := w.invoker.Run(cancelCtx, system, user, tools.AssessmentPhaseTools(), executor.Execute)
	observability.RecordTokens(result.InputTokensTotal, result.OutputTokensTotal, w.invoker.Model())

	tokenSummary := map[string]any{
		"input_tokens":  result.InputTokensTotal,
		"output_tokens": result.OutputTokensTotal,
	}

	if !result.Success {
		w.terminate(ctx, childID, sessionID, result.Error, tokenSummary)
		return
	}

	saved, ok := executor.LastSavedAssessment()
	if !ok {
		const reason = "agent did not save an assessment"
		w.terminate(ctx, childID, sessionID, reason, tokenSummary)
		return
	}

	tokenSummary["verdict"] = saved.Verdict
	tokenSummary["path"] = saved.Path
	if err := w.registry.Complete(childID, tokenSummary); err != nil {
		slog.Error("assessment worker: failed to complete child operation", "operation_id", childID, "error", err)
	}

	metrics := map[string]any{
		"verdict":     saved.Verdict,
		"strengths":   saved.Strengths,
		"weaknesses":  saved.Weaknesses,
		"suggestions": saved.Suggestions,
	}
	text := summarizeAssessment(saved)
	if err := w.store.UpdateAssessment(ctx, sessionID, text, metrics); err != nil {
		slog.Error("assessment worker: failed to record assessment", "session_id", sessionID, "error", err)
		outcome := datatypes.OutcomeFailedAssessment
		_ = w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseAssessing, datatypes.PhaseComplete, nil, &outcome)
		return
	}

	outcome := datatypes.OutcomeSuccess
	if err := w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseAssessing, datatypes.PhaseComplete, nil, &outcome); err != nil {
		slog.Error("assessment worker: failed to complete session", "session_id", sessionID, "error", err)
	}

	slog.Info("assessment worker: completed", "session_id", sessionID, "strategy_name", strategyName,
		"verdict", saved.Verdict, "input_tokens", result.InputTokensTotal, "output_tokens", result.OutputTokensTotal)
}

func (w *AssessmentWorker) terminate(ctx context.Context, childID string, sessionID int64, errText string, partialSummary map[string]any) {
	if isCancellation(errText) {
		if err := w.registry.Cancel(childID, errText); err != nil {
			slog.Error("assessment worker: failed to cancel child operation", "operation_id", childID, "error", err)
		}
	} else if err := w.registry.Fail(childID, errText, partialSummary); err != nil {
		slog.Error("assessment worker: failed to fail child operation", "operation_id", childID, "error", err)
	}

	outcome := classifyFailureOutcome(errText, datatypes.OutcomeFailedAssessment)
	if err := w.store.UpdatePhase(ctx, sessionID, datatypes.PhaseAssessing, datatypes.PhaseComplete, nil, &outcome); err != nil {
		slog.Error("assessment worker: failed to complete session", "session_id", sessionID, "error", err)
	}
	slog.Warn("assessment worker: terminated", "session_id", sessionID, "error", errText, "outcome", outcome)
}

// summarizeAssessment renders the saved assessment as the free-text summary
// the store persists alongside its structured metrics.
func summarizeAssessment(saved tools.SavedAssessment) string {
	encoded, err := json.Marshal(struct {
		Verdict     string   `json:"verdict"`
		Strengths   []string `json:"strengths"`
		Weaknesses  []string `json:"weaknesses"`
		Suggestions []string `json:"suggestions"`
	}{saved.Verdict, saved.Strengths, saved.Weaknesses, saved.Suggestions})
	if err != nil {
		return saved.Verdict
	}
	return string(encoded)
}
