// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reconciler implements the trigger reconciler: the central control
// loop that advances the single active research session through its state
// machine one tick at a time, on a ticker + done-channel background loop.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/gates"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/observability"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/store"
)

// Config bounds the reconciler's background loop.
type Config struct {
	Enabled  bool
	Interval time.Duration
}

// DefaultConfig returns the default reconciler tick interval: enabled, every
// five minutes.
func DefaultConfig() Config {
	return Config{Enabled: true, Interval: 300 * time.Second}
}

// DesignSpawner starts the design worker's background run for a freshly
// created session. Implemented by *workers.DesignWorker; an interface here
// keeps the reconciler package import-cycle-free and independently testable.
type DesignSpawner interface {
	Run(ctx context.Context, sessionID int64, parentOperationID, brief string)
}

// AssessmentSpawner starts the assessment worker's background run once
// backtesting has passed its gate.
type AssessmentSpawner interface {
	Run(ctx context.Context, sessionID int64, parentOperationID, strategyName string, training, backtest map[string]any)
}

// TickResult describes exactly what one checkAndTrigger invocation did.
type TickResult struct {
	Triggered bool
	Reason    string
	SessionID *int64
}

// Reconciler is the sole writer of every session-phase transition it can
// observe completion of by polling an external OperationID: DESIGNED→
// TRAINING, TRAINING→{BACKTESTING,COMPLETE}, BACKTESTING→{ASSESSING,
// COMPLETE}. The DESIGNING and ASSESSING transitions are written by the
// workers themselves; see datatypes.Phase.
type Reconciler struct {
	store            store.Store
	gates            *gates.Evaluator
	opts             extensions.ServiceOptions
	designWorker     DesignSpawner
	assessmentWorker AssessmentSpawner
	config           Config

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// New builds a Reconciler wired to its collaborators.
func New(st store.Store, gateEvaluator *gates.Evaluator, opts extensions.ServiceOptions, designWorker DesignSpawner, assessmentWorker AssessmentSpawner, config Config) *Reconciler {
	return &Reconciler{
		store:            st,
		gates:            gateEvaluator,
		opts:             opts,
		designWorker:     designWorker,
		assessmentWorker: assessmentWorker,
		config:           config,
		done:             make(chan struct{}),
	}
}

// Start runs recoverOrphanedSessions once, then the periodic tick loop, in a
// background goroutine. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	if n, err := r.store.RecoverOrphanedSessions(ctx); err != nil {
		slog.Error("reconciler: orphaned-session recovery failed", "error", err)
	} else if n > 0 {
		slog.Warn("reconciler: recovered orphaned sessions", "count", n)
	}

	slog.Info("reconciler starting", "enabled", r.config.Enabled, "interval", r.config.Interval)
	go r.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit. Safe to call multiple times.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	close(r.done)
	r.running = false
	return nil
}

func (r *Reconciler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped (context cancelled)")
			return
		case <-r.done:
			slog.Info("reconciler stopped (stop requested)")
			return
		case <-ticker.C:
			result, err := r.CheckAndTrigger(ctx)
			if err != nil {
				slog.Error("reconciler tick failed", "error", err)
				continue
			}
			if result.Triggered {
				slog.Info("reconciler tick", "triggered", true, "reason", result.Reason, "session_id", result.SessionID)
			} else {
				slog.Debug("reconciler tick", "triggered", false, "reason", result.Reason)
			}
		}
	}
}

// CheckAndTrigger performs exactly one observation/action step.
func (r *Reconciler) CheckAndTrigger(ctx context.Context) (result TickResult, err error) {
	defer func() {
		if err == nil {
			observability.RecordReconcilerTick(result.Reason)
		}
	}()

	if !r.config.Enabled {
		return TickResult{Reason: "disabled"}, nil
	}

	session, err := r.store.GetActiveSession(ctx)
	if errors.Is(err, store.ErrNoActiveSession) {
		observability.SetActiveSession(false)
		return r.startNewCycle(ctx)
	}
	if err != nil {
		return TickResult{}, fmt.Errorf("load active session: %w", err)
	}
	observability.SetActiveSession(true)

	switch session.Phase {
	case datatypes.PhaseDesigning:
		return TickResult{Reason: "design_in_progress", SessionID: &session.ID}, nil
	case datatypes.PhaseDesigned:
		return r.dispatchDesigned(ctx, session)
	case datatypes.PhaseTraining:
		return r.dispatchTraining(ctx, session)
	case datatypes.PhaseBacktesting:
		return r.dispatchBacktesting(ctx, session)
	case datatypes.PhaseAssessing:
		return TickResult{Reason: "assessment_in_progress", SessionID: &session.ID}, nil
	default:
		return TickResult{Reason: fmt.Sprintf("unexpected active phase %q", session.Phase), SessionID: &session.ID}, nil
	}
}

func (r *Reconciler) startNewCycle(ctx context.Context) (TickResult, error) {
	sessionID, err := r.store.CreateSession(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("create session: %w", err)
	}
	if err := r.store.UpdatePhase(ctx, sessionID, datatypes.PhaseIdle, datatypes.PhaseDesigning, nil, nil); err != nil {
		return TickResult{}, fmt.Errorf("transition session %d to DESIGNING: %w", sessionID, err)
	}

	parentLabel := fmt.Sprintf("cycle_session_%d", sessionID)
	go r.designWorker.Run(context.WithoutCancel(ctx), sessionID, parentLabel, "")

	return TickResult{Triggered: true, Reason: "new_cycle", SessionID: &sessionID}, nil
}

func (r *Reconciler) dispatchDesigned(ctx context.Context, session datatypes.Session) (TickResult, error) {
	if session.StrategyName == nil {
		return TickResult{}, fmt.Errorf("session %d is DESIGNED but has no strategy name", session.ID)
	}

	handle, err := r.opts.TrainingStarter.StartTraining(ctx, *session.StrategyName, nil, nil, "", "")
	if err != nil || !handle.Success {
		reason := errString(err, handle.Error)
		slog.Warn("reconciler: training start failed", "session_id", session.ID, "error", reason)
		return r.completeSession(ctx, session, datatypes.PhaseDesigned, datatypes.OutcomeFailedTraining, "training_start_failed: "+reason)
	}

	if err := r.store.UpdatePhase(ctx, session.ID, datatypes.PhaseDesigned, datatypes.PhaseTraining, &handle.OperationID, nil); err != nil {
		return TickResult{}, fmt.Errorf("transition session %d to TRAINING: %w", session.ID, err)
	}
	return TickResult{Triggered: true, Reason: "training_started", SessionID: &session.ID}, nil
}

func (r *Reconciler) dispatchTraining(ctx context.Context, session datatypes.Session) (TickResult, error) {
	if session.OperationID == nil {
		return TickResult{}, fmt.Errorf("session %d is TRAINING but has no operation id", session.ID)
	}

	status, err := r.opts.OperationStatus.GetOperation(ctx, *session.OperationID)
	if err != nil {
		return TickResult{}, fmt.Errorf("poll training operation %s: %w", *session.OperationID, err)
	}

	switch status.Status {
	case string(datatypes.OperationPending), string(datatypes.OperationRunning):
		return TickResult{Reason: "operation_in_progress", SessionID: &session.ID}, nil
	case string(datatypes.OperationFailed):
		observability.RecordOperation(string(datatypes.OperationTraining), status.Status)
		return r.completeSession(ctx, session, datatypes.PhaseTraining, datatypes.OutcomeFailedTraining, "training_operation_failed: "+status.ErrorMessage)
	case string(datatypes.OperationCompleted):
		observability.RecordOperation(string(datatypes.OperationTraining), status.Status)
		trainingResult := gates.TrainingResultFromSummary(status.ResultSummary)
		verdict := r.gates.EvaluateTraining(trainingResult)
		observability.RecordGateEvaluation(observability.GateTraining, verdict.Passed)
		if !verdict.Passed {
			return r.completeSession(ctx, session, datatypes.PhaseTraining, datatypes.OutcomeFailedTrainingGate, verdict.Reason)
		}

		modelPath := ""
		if trainingResult.ModelPath != nil {
			modelPath = *trainingResult.ModelPath
		}
		handle, err := r.opts.BacktestStarter.StartBacktest(ctx, *session.StrategyName, modelPath, nil, nil, "", "")
		if err != nil || !handle.Success {
			reason := errString(err, handle.Error)
			return r.completeSession(ctx, session, datatypes.PhaseTraining, datatypes.OutcomeFailedBacktest, "backtest_start_failed: "+reason)
		}
		if err := r.store.RecordTrainingResult(ctx, session.ID, status.ResultSummary); err != nil {
			slog.Warn("reconciler: failed to record training result", "session_id", session.ID, "error", err)
		}
		if err := r.store.UpdatePhase(ctx, session.ID, datatypes.PhaseTraining, datatypes.PhaseBacktesting, &handle.OperationID, nil); err != nil {
			return TickResult{}, fmt.Errorf("transition session %d to BACKTESTING: %w", session.ID, err)
		}
		return TickResult{Triggered: true, Reason: "backtest_started", SessionID: &session.ID}, nil
	default:
		return TickResult{}, fmt.Errorf("session %d: unrecognized training operation status %q", session.ID, status.Status)
	}
}

func (r *Reconciler) dispatchBacktesting(ctx context.Context, session datatypes.Session) (TickResult, error) {
	if session.OperationID == nil {
		return TickResult{}, fmt.Errorf("session %d is BACKTESTING but has no operation id", session.ID)
	}

	status, err := r.opts.OperationStatus.GetOperation(ctx, *session.OperationID)
	if err != nil {
		return TickResult{}, fmt.Errorf("poll backtest operation %s: %w", *session.OperationID, err)
	}

	switch status.Status {
	case string(datatypes.OperationPending), string(datatypes.OperationRunning):
		return TickResult{Reason: "operation_in_progress", SessionID: &session.ID}, nil
	case string(datatypes.OperationFailed):
		observability.RecordOperation(string(datatypes.OperationBacktest), status.Status)
		return r.completeSession(ctx, session, datatypes.PhaseBacktesting, datatypes.OutcomeFailedBacktest, "backtest_operation_failed: "+status.ErrorMessage)
	case string(datatypes.OperationCompleted):
		observability.RecordOperation(string(datatypes.OperationBacktest), status.Status)
		backtestResult := gates.BacktestResultFromSummary(status.ResultSummary)
		verdict := r.gates.EvaluateBacktest(backtestResult)
		observability.RecordGateEvaluation(observability.GateBacktest, verdict.Passed)
		if !verdict.Passed {
			return r.completeSession(ctx, session, datatypes.PhaseBacktesting, datatypes.OutcomeFailedBacktestGate, verdict.Reason)
		}

		if err := r.store.UpdatePhase(ctx, session.ID, datatypes.PhaseBacktesting, datatypes.PhaseAssessing, nil, nil); err != nil {
			return TickResult{}, fmt.Errorf("transition session %d to ASSESSING: %w", session.ID, err)
		}

		parentLabel := fmt.Sprintf("cycle_session_%d", session.ID)
		go r.assessmentWorker.Run(context.WithoutCancel(ctx), session.ID, parentLabel, *session.StrategyName, session.TrainingResult, status.ResultSummary)

		return TickResult{Triggered: true, Reason: "assessment_started", SessionID: &session.ID}, nil
	default:
		return TickResult{}, fmt.Errorf("session %d: unrecognized backtest operation status %q", session.ID, status.Status)
	}
}

func (r *Reconciler) completeSession(ctx context.Context, session datatypes.Session, expectedPhase datatypes.Phase, outcome datatypes.Outcome, reason string) (TickResult, error) {
	sessionID := session.ID
	if err := r.store.UpdatePhase(ctx, sessionID, expectedPhase, datatypes.PhaseComplete, nil, &outcome); err != nil {
		return TickResult{}, fmt.Errorf("complete session %d: %w", sessionID, err)
	}
	if !session.CreatedAt.IsZero() {
		observability.RecordSessionCycle(string(outcome), time.Since(session.CreatedAt).Seconds())
	}
	return TickResult{Triggered: true, Reason: reason, SessionID: &sessionID}, nil
}

func errString(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
