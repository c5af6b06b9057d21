// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// TrainingResult is the result summary an operation of type TRAINING
// produces on COMPLETED, and the input to the training gate.
//
// Fields are pointers so a missing metric can be distinguished from a
// reported zero value; the gate treats a nil field as a hard failure.
type TrainingResult struct {
	Accuracy    *float64
	FinalLoss   *float64
	InitialLoss *float64
	ModelPath   *string
}

// BacktestResult is the result summary an operation of type BACKTEST
// produces on COMPLETED, and the input to the backtest gate.
type BacktestResult struct {
	WinRate     *float64
	MaxDrawdown *float64
	SharpeRatio *float64
}

// GateVerdict is the outcome of evaluating a gate.
//
// # Fields
//
//   - Passed: true iff every predicate held.
//   - Reason: on failure, names the first failing predicate and includes the
//     observed value and the configured threshold; on pass, a short
//     human-readable summary.
type GateVerdict struct {
	Passed bool
	Reason string
}

// ToolDefinition is one entry of the LLM's tool catalog.
//
// InputSchema follows the JSON-Schema-like shape the Anthropic and OpenAI
// tool-use APIs both expect: {"type": "object", "properties": {...},
// "required": [...]}.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolResult is what a tool handler returns from one invocation. It is
// serialized into a ContentToolResult block before being sent back to the
// model.
type ToolResult = map[string]any
