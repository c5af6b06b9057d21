// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists sessions and actions to Postgres via
// pgx. The table shapes are grounded on the original system's
// agent_sessions/agent_actions DDL, widened with assessment columns and a
// fuller set of action-log fields.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoActiveSession is returned by GetActiveSession when no session is
// currently in a non-idle, non-complete phase.
var ErrNoActiveSession = errors.New("no active session")

// ErrPhaseMismatch is returned by UpdatePhase when a session's current phase
// no longer matches the caller's expected prior phase: another writer has
// already advanced it, and the update is rejected rather than applied over
// stale state.
var ErrPhaseMismatch = errors.New("session phase does not match expected prior phase")

// Store is the persistence surface the reconciler and workers depend on.
//
// Implementations must uphold the single-active-session invariant (at most
// one row with phase not in (idle, complete)) and the sole-writer discipline
// on Session fields documented on datatypes.Session.
type Store interface {
	// CreateSession inserts a new IDLE session and returns its id.
	CreateSession(ctx context.Context) (int64, error)

	// GetSession fetches a session by id.
	GetSession(ctx context.Context, id int64) (datatypes.Session, error)

	// GetActiveSession returns the single non-idle, non-complete session, or
	// ErrNoActiveSession if none exists.
	GetActiveSession(ctx context.Context) (datatypes.Session, error)

	// UpdatePhase advances a session's phase and, optionally, its outcome and
	// operation id in the same statement (the reconciler's sole-writer
	// fields). The update is a compare-and-swap on expectedPhase: if the
	// session's current phase no longer matches it, nothing is written and
	// ErrPhaseMismatch is returned, so two racing writers cannot silently
	// clobber each other's transition.
	UpdatePhase(ctx context.Context, id int64, expectedPhase, phase datatypes.Phase, operationID *string, outcome *datatypes.Outcome) error

	// UpdateStrategy records the strategy a design worker saved (the
	// worker's sole-writer field).
	UpdateStrategy(ctx context.Context, id int64, strategyName string) error

	// UpdateAssessment records the assessment an assessment worker produced
	// (the worker's sole-writer fields).
	UpdateAssessment(ctx context.Context, id int64, text string, metrics map[string]any) error

	// RecordTrainingResult stashes the TRAINING operation's result summary
	// so it survives the overwrite of OperationID when BACKTESTING starts
	// (the reconciler's field; read back by the assessment worker).
	RecordTrainingResult(ctx context.Context, id int64, result map[string]any) error

	// RecordAction appends one tool-call audit entry.
	RecordAction(ctx context.Context, action datatypes.Action) error

	// RecoverOrphanedSessions moves every session left in a non-terminal
	// phase to COMPLETE/FAILED_INTERRUPTED, run once at process startup.
	RecoverOrphanedSessions(ctx context.Context) (int, error)

	// Close releases underlying connections.
	Close()
}

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at dsn and applies the embedded schema.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO agent_sessions (phase) VALUES ($1) RETURNING id`,
		datatypes.PhaseIdle,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (datatypes.Session, error) {
	row := s.pool.QueryRow(ctx, selectSessionSQL+` WHERE id = $1`, id)
	return scanSession(row)
}

func (s *PostgresStore) GetActiveSession(ctx context.Context) (datatypes.Session, error) {
	row := s.pool.QueryRow(ctx,
		selectSessionSQL+` WHERE phase NOT IN ($1, $2) ORDER BY id LIMIT 1`,
		datatypes.PhaseIdle, datatypes.PhaseComplete,
	)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return datatypes.Session{}, ErrNoActiveSession
	}
	return session, err
}

func (s *PostgresStore) UpdatePhase(ctx context.Context, id int64, expectedPhase, phase datatypes.Phase, operationID *string, outcome *datatypes.Outcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_sessions SET phase = $1, operation_id = $2, outcome = $3, updated_at = NOW() WHERE id = $4 AND phase = $5`,
		phase, operationID, outcome, id, expectedPhase,
	)
	if err != nil {
		return fmt.Errorf("updating session %d phase: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %d: expected phase %s: %w", id, expectedPhase, ErrPhaseMismatch)
	}
	return nil
}

func (s *PostgresStore) UpdateStrategy(ctx context.Context, id int64, strategyName string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE agent_sessions SET strategy_name = $1, updated_at = NOW() WHERE id = $2`,
		strategyName, id,
	)
	if err != nil {
		return fmt.Errorf("updating session %d strategy: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateAssessment(ctx context.Context, id int64, text string, metrics map[string]any) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE agent_sessions SET assessment_text = $1, assessment_metrics = $2, updated_at = NOW() WHERE id = $3`,
		text, metrics, id,
	)
	if err != nil {
		return fmt.Errorf("updating session %d assessment: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordTrainingResult(ctx context.Context, id int64, result map[string]any) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE agent_sessions SET training_result = $1, updated_at = NOW() WHERE id = $2`,
		result, id,
	)
	if err != nil {
		return fmt.Errorf("recording session %d training result: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordAction(ctx context.Context, action datatypes.Action) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_actions (session_id, tool_name, tool_args, result, input_tokens, output_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		action.SessionID, action.ToolName, action.ToolArgs, action.Result, action.InputTokens, action.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("recording action for session %d: %w", action.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) RecoverOrphanedSessions(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_sessions
		 SET phase = $1, outcome = $2, updated_at = NOW()
		 WHERE phase NOT IN ($3, $4)`,
		datatypes.PhaseComplete, datatypes.OutcomeFailedInterrupted,
		datatypes.PhaseIdle, datatypes.PhaseComplete,
	)
	if err != nil {
		return 0, fmt.Errorf("recovering orphaned sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const selectSessionSQL = `
SELECT id, phase, strategy_name, operation_id, outcome, created_at, updated_at, assessment_text, assessment_metrics, training_result
FROM agent_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (datatypes.Session, error) {
	var s datatypes.Session
	err := row.Scan(&s.ID, &s.Phase, &s.StrategyName, &s.OperationID, &s.Outcome, &s.CreatedAt, &s.UpdatedAt, &s.AssessmentText, &s.AssessmentMetrics, &s.TrainingResult)
	if err != nil {
		return datatypes.Session{}, err
	}
	return s, nil
}
