// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/services/llm"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/reconciler"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// applyConfigDefaults Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 12210, result.Port)
	assert.Equal(t, "claude", result.LLMBackend)
	assert.Equal(t, "aleutian-otel-collector:4317", result.OTelEndpoint)
	assert.True(t, result.EnableMetrics)
	assert.Equal(t, "./strategies", result.StrategiesDir)
	assert.Equal(t, llm.DefaultInvokerConfig(), result.Invoker)
	assert.Equal(t, reconciler.DefaultConfig(), result.Reconciler)
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:          8080,
		LLMBackend:    "openai",
		OTelEndpoint:  "custom-collector:4317",
		StrategiesDir: "/data/strategies",
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "openai", result.LLMBackend)
	assert.Equal(t, "custom-collector:4317", result.OTelEndpoint)
	assert.Equal(t, "/data/strategies", result.StrategiesDir)
}

func TestApplyConfigDefaults_PartialConfig(t *testing.T) {
	cfg := Config{Port: 9999}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 9999, result.Port)
	assert.Equal(t, "claude", result.LLMBackend)
	assert.Equal(t, "aleutian-otel-collector:4317", result.OTelEndpoint)
}

func TestApplyConfigDefaults_CustomInvokerAndReconcilerPreserved(t *testing.T) {
	cfg := Config{
		Invoker:    llm.InvokerConfig{Model: "gpt-4", MaxOutputTokensPerCall: 1, MaxIterations: 1, MaxTotalInputTokens: 1, RequestTimeout: time.Second},
		Reconciler: reconciler.Config{Enabled: false, Interval: time.Minute},
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, "gpt-4", result.Invoker.Model)
	assert.False(t, result.Reconciler.Enabled)
	assert.Equal(t, time.Minute, result.Reconciler.Interval)
}

// =============================================================================
// ServiceOptions Tests
// =============================================================================

func TestServiceOptions_NilUsesDefaults(t *testing.T) {
	var opts *extensions.ServiceOptions

	var actual extensions.ServiceOptions
	if opts != nil {
		actual = *opts
	} else {
		actual = extensions.DefaultOptions()
	}

	_, isNop := actual.TrainingStarter.(extensions.NopTrainingStarter)
	assert.True(t, isNop, "TrainingStarter should default to the no-op implementation")
}

// =============================================================================
// newLLMClient Tests
// =============================================================================

func TestNewLLMClient_UnsupportedBackend(t *testing.T) {
	_, err := newLLMClient("ollama")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM backend")
}

// =============================================================================
// Interface Compliance
// =============================================================================

func TestServiceImplementsInterface(t *testing.T) {
	var svc Service
	_ = svc
}

// =============================================================================
// HTTP Surface Tests (constructed directly, bypassing New() to avoid
// dialing real Postgres/LLM/OTel backends)
// =============================================================================

type fakeActiveSessionStore struct {
	session datatypes.Session
	err     error
}

func (s *fakeActiveSessionStore) CreateSession(ctx context.Context) (int64, error) { return 1, nil }
func (s *fakeActiveSessionStore) GetSession(ctx context.Context, id int64) (datatypes.Session, error) {
	return s.session, s.err
}
func (s *fakeActiveSessionStore) GetActiveSession(ctx context.Context) (datatypes.Session, error) {
	return s.session, s.err
}
func (s *fakeActiveSessionStore) UpdatePhase(ctx context.Context, id int64, expectedPhase, phase datatypes.Phase, operationID *string, outcome *datatypes.Outcome) error {
	return nil
}
func (s *fakeActiveSessionStore) UpdateStrategy(ctx context.Context, id int64, strategyName string) error {
	return nil
}
func (s *fakeActiveSessionStore) UpdateAssessment(ctx context.Context, id int64, text string, metrics map[string]any) error {
	return nil
}
func (s *fakeActiveSessionStore) RecordTrainingResult(ctx context.Context, id int64, result map[string]any) error {
	return nil
}
func (s *fakeActiveSessionStore) RecordAction(ctx context.Context, action datatypes.Action) error {
	return nil
}
func (s *fakeActiveSessionStore) RecoverOrphanedSessions(ctx context.Context) (int, error) {
	return 0, nil
}
func (s *fakeActiveSessionStore) Close() {}

var _ store.Store = (*fakeActiveSessionStore)(nil)

func newTestService(t *testing.T, st store.Store) *service {
	t.Helper()
	s := &service{
		config: applyConfigDefaults(Config{}),
		store:  st,
	}
	s.initRouter()
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestService(t, &fakeActiveSessionStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestService(t, &fakeActiveSessionStore{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActiveSession_Found(t *testing.T) {
	strategyName := "momentum-v1"
	s := newTestService(t, &fakeActiveSessionStore{
		session: datatypes.Session{ID: 7, Phase: datatypes.PhaseTraining, StrategyName: &strategyName},
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "momentum-v1")
}

func TestActiveSession_NotFound(t *testing.T) {
	s := newTestService(t, &fakeActiveSessionStore{err: store.ErrNoActiveSession})

	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveSession_StoreError(t *testing.T) {
	s := newTestService(t, &fakeActiveSessionStore{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClose_NilFieldsSafe(t *testing.T) {
	s := &service{}
	assert.NotPanics(t, func() { s.Close() })
}
