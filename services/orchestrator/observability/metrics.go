// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// research-agent orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for the reconciler loop, the
// operations it tracks, and the tokens the agentic loop spends. Metrics
// include:
//   - Reconciler tick counters (by trigger reason)
//   - Operation lifecycle counters (by type and terminal status)
//   - Gate verdict counters (by gate and pass/fail)
//   - Token usage (input/output tokens by model)
//   - Session-cycle duration histogram
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for the research-agent orchestrator's own metrics
const orchestratorSubsystem = "agent_orchestrator"

// OrchestratorMetrics holds all Prometheus metrics for the research-agent
// orchestrator. Initialize once at startup via NewOrchestratorMetrics().
//
// # Fields
//
//   - ReconcilerTicksTotal: counts reconciler ticks by trigger reason.
//   - OperationsTotal: counts operations reaching a terminal status, by
//     operation type and status.
//   - GateEvaluationsTotal: counts gate evaluations by gate name and
//     pass/fail.
//   - TokensTotal: counts tokens processed by direction and model.
//   - SessionCycleDurationSeconds: histogram of time from a session's
//     DESIGNING phase to COMPLETE.
//   - ActiveSessionGauge: 1 while a session is active, 0 otherwise.
//
// # Thread Safety
//
// All operations are thread-safe.
type OrchestratorMetrics struct {
	ReconcilerTicksTotal        *prometheus.CounterVec
	OperationsTotal             *prometheus.CounterVec
	GateEvaluationsTotal        *prometheus.CounterVec
	TokensTotal                 *prometheus.CounterVec
	SessionCycleDurationSeconds *prometheus.HistogramVec
	ActiveSessionGauge          prometheus.Gauge
}

// DefaultMetrics is the singleton instance of OrchestratorMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *OrchestratorMetrics

// InitMetrics initializes the default metrics instance. Should be called
// once at application startup, after the Prometheus registry is available.
//
// Panics if called twice (duplicate registration).
func InitMetrics() *OrchestratorMetrics {
	DefaultMetrics = &OrchestratorMetrics{
		ReconcilerTicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "reconciler_ticks_total",
				Help:      "Total reconciler ticks by trigger reason",
			},
			[]string{"reason"},
		),

		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "operations_total",
				Help:      "Total operations reaching a terminal status, by type and status",
			},
			[]string{"type", "status"},
		),

		GateEvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "gate_evaluations_total",
				Help:      "Total gate evaluations by gate name and pass/fail",
			},
			[]string{"gate", "result"},
		),

		TokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "tokens_total",
				Help:      "Total tokens processed by direction and model",
			},
			[]string{"direction", "model"},
		),

		SessionCycleDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "session_cycle_duration_seconds",
				Help:      "Duration of a research cycle from DESIGNING to COMPLETE",
				Buckets:   []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"outcome"},
		),

		ActiveSessionGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "active_session",
				Help:      "1 while a research session is active (not IDLE/COMPLETE), 0 otherwise",
			},
		),
	}

	return DefaultMetrics
}

// GateName identifies a gate for metrics labeling.
type GateName string

const (
	GateTraining GateName = "training"
	GateBacktest GateName = "backtest"
)

// RecordReconcilerTick records one reconciler tick's outcome reason.
func (m *OrchestratorMetrics) RecordReconcilerTick(reason string) {
	m.ReconcilerTicksTotal.WithLabelValues(reason).Inc()
}

// RecordOperation records an operation reaching a terminal status.
func (m *OrchestratorMetrics) RecordOperation(operationType, status string) {
	m.OperationsTotal.WithLabelValues(operationType, status).Inc()
}

// RecordGateEvaluation records a gate's pass/fail verdict.
func (m *OrchestratorMetrics) RecordGateEvaluation(gate GateName, passed bool) {
	result := "pass"
	if !passed {
		result = "fail"
	}
	m.GateEvaluationsTotal.WithLabelValues(string(gate), result).Inc()
}

// RecordTokens records token usage for one LLM invocation.
func (m *OrchestratorMetrics) RecordTokens(inputTokens, outputTokens int, model string) {
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordSessionCycle records one completed session's total duration and
// terminal outcome.
func (m *OrchestratorMetrics) RecordSessionCycle(outcome string, seconds float64) {
	m.SessionCycleDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// SetActiveSession sets the active-session gauge.
func (m *OrchestratorMetrics) SetActiveSession(active bool) {
	if active {
		m.ActiveSessionGauge.Set(1)
		return
	}
	m.ActiveSessionGauge.Set(0)
}

// The package-level Record*/SetActiveSession functions below are the call
// sites' entry point: they forward to DefaultMetrics when InitMetrics has
// been called and are a silent no-op otherwise, so reconciler/registry/
// gates/workers code can record metrics unconditionally without every call
// site needing to guard against tests and other callers that construct
// these components without ever calling InitMetrics.

// RecordReconcilerTick forwards to DefaultMetrics, if initialized.
func RecordReconcilerTick(reason string) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordReconcilerTick(reason)
	}
}

// RecordOperation forwards to DefaultMetrics, if initialized.
func RecordOperation(operationType, status string) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordOperation(operationType, status)
	}
}

// RecordGateEvaluation forwards to DefaultMetrics, if initialized.
func RecordGateEvaluation(gate GateName, passed bool) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordGateEvaluation(gate, passed)
	}
}

// RecordTokens forwards to DefaultMetrics, if initialized.
func RecordTokens(inputTokens, outputTokens int, model string) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordTokens(inputTokens, outputTokens, model)
	}
}

// RecordSessionCycle forwards to DefaultMetrics, if initialized.
func RecordSessionCycle(outcome string, seconds float64) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordSessionCycle(outcome, seconds)
	}
}

// SetActiveSession forwards to DefaultMetrics, if initialized.
func SetActiveSession(active bool) {
	if DefaultMetrics != nil {
		DefaultMetrics.SetActiveSession(active)
	}
}
