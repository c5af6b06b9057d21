// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the local tool-handler registry the LLM invoker
// dispatches into during an agentic loop run: validating and
// saving strategy configurations, persisting the final assessment, and
// reading the indicator/symbol/recent-strategy catalogs.
package tools

import "github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"

const (
	ToolValidateStrategyConfig = "validate_strategy_config"
	ToolSaveStrategyConfig     = "save_strategy_config"
	ToolSaveAssessment         = "save_assessment"
	ToolGetAvailableIndicators = "get_available_indicators"
	ToolGetAvailableSymbols    = "get_available_symbols"
	ToolGetRecentStrategies    = "get_recent_strategies"
)

var catalog = map[string]datatypes.ToolDefinition{
	ToolValidateStrategyConfig: {
		Name:        ToolValidateStrategyConfig,
		Description: "Validate a strategy configuration against the indicator/symbol catalogs and schema rules, without saving it.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"config": map[string]any{
					"type":        "object",
					"description": "The strategy configuration to validate.",
				},
			},
			"required": []string{"config"},
		},
	},
	ToolSaveStrategyConfig: {
		Name:        ToolSaveStrategyConfig,
		Description: "Validate and save a strategy configuration as a YAML file in the strategies directory.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Unique strategy name; becomes the YAML file's base name.",
				},
				"config": map[string]any{
					"type":        "object",
					"description": "The strategy configuration to save.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Free-form description of the strategy's thesis.",
				},
			},
			"required": []string{"name", "config", "description"},
		},
	},
	ToolSaveAssessment: {
		Name:        ToolSaveAssessment,
		Description: "Save the final analytic assessment of the current strategy's training and backtest results.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"verdict": map[string]any{
					"type": "string",
					"enum": []string{"promising", "mediocre", "poor"},
				},
				"strengths": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"weaknesses": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"suggestions": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"verdict", "strengths", "weaknesses", "suggestions"},
		},
	},
	ToolGetAvailableIndicators: {
		Name:        ToolGetAvailableIndicators,
		Description: "List the technical indicators available to build a strategy with.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	ToolGetAvailableSymbols: {
		Name:        ToolGetAvailableSymbols,
		Description: "List the trading symbols available for training and backtesting.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	ToolGetRecentStrategies: {
		Name:        ToolGetRecentStrategies,
		Description: "List the most recently saved strategies, to avoid duplicating prior research.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"n": map[string]any{
					"type":        "integer",
					"description": "Number of recent strategies to return, clamped to [1, 20]. Defaults to 5.",
				},
			},
		},
	},
}

// DesignPhaseTools returns the reduced catalog the design worker exposes to
// the model: only the tools needed to validate and save a
// strategy. Discovery tools are omitted because their information is already
// embedded in the design prompt.
func DesignPhaseTools() []datatypes.ToolDefinition {
	return []datatypes.ToolDefinition{
		catalog[ToolValidateStrategyConfig],
		catalog[ToolSaveStrategyConfig],
	}
}

// AssessmentPhaseTools returns the reduced catalog the assessment worker
// exposes to the model: save_assessment only.
func AssessmentPhaseTools() []datatypes.ToolDefinition {
	return []datatypes.ToolDefinition{
		catalog[ToolSaveAssessment],
	}
}

// FullCatalog returns every tool the executor can handle, discovery tools
// included. Not used by either worker today but kept for callers that want
// the complete definition set (documentation, tests).
func FullCatalog() []datatypes.ToolDefinition {
	out := make([]datatypes.ToolDefinition, 0, len(catalog))
	for _, name := range []string{
		ToolValidateStrategyConfig,
		ToolSaveStrategyConfig,
		ToolSaveAssessment,
		ToolGetAvailableIndicators,
		ToolGetAvailableSymbols,
		ToolGetRecentStrategies,
	} {
		out = append(out, catalog[name])
	}
	return out
}
