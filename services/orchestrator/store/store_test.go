// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// newTestStore opens a PostgresStore against TEST_DATABASE_URL, skipping the
// test when that variable is unset. These tests exercise a real database
// rather than mocking pgx, since what is under test (the SQL statements,
// including UpdatePhase's compare-and-swap on the current phase) runs in
// Postgres, not in Go.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping store integration test")
	}
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx)
	require.NoError(t, err)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, datatypes.PhaseIdle, session.Phase)
	require.Nil(t, session.StrategyName)
}

func TestGetActiveSession_NoneActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetActiveSession(ctx)
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestUpdatePhaseAndStrategy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx)
	require.NoError(t, err)

	opID := "op_AGENT_DESIGN_1_abcd1234"
	require.NoError(t, s.UpdatePhase(ctx, id, datatypes.PhaseIdle, datatypes.PhaseDesigning, &opID, nil))
	require.NoError(t, s.UpdateStrategy(ctx, id, "momentum_rsi_v1"))

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, datatypes.PhaseDesigning, session.Phase)
	require.NotNil(t, session.OperationID)
	require.Equal(t, opID, *session.OperationID)
	require.NotNil(t, session.StrategyName)
	require.Equal(t, "momentum_rsi_v1", *session.StrategyName)

	active, err := s.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Equal(t, id, active.ID)
}

func TestRecordAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx)
	require.NoError(t, err)

	inTok, outTok := 120, 45
	err = s.RecordAction(ctx, datatypes.Action{
		SessionID:    id,
		ToolName:     "save_strategy_config",
		ToolArgs:     map[string]any{"name": "momentum_rsi_v1"},
		Result:       map[string]any{"status": "saved"},
		InputTokens:  &inTok,
		OutputTokens: &outTok,
	})
	require.NoError(t, err)
}

func TestRecoverOrphanedSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdatePhase(ctx, id, datatypes.PhaseIdle, datatypes.PhaseTraining, nil, nil))

	n, err := s.RecoverOrphanedSessions(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, datatypes.PhaseComplete, session.Phase)
	require.NotNil(t, session.Outcome)
	require.Equal(t, datatypes.OutcomeFailedInterrupted, *session.Outcome)
}

func TestUpdatePhase_MismatchRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx)
	require.NoError(t, err)

	err = s.UpdatePhase(ctx, id, datatypes.PhaseTraining, datatypes.PhaseBacktesting, nil, nil)
	require.ErrorIs(t, err, ErrPhaseMismatch)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, datatypes.PhaseIdle, session.Phase)
}
