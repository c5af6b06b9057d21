// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workers implements the two background procedures the reconciler
// spawns: the design worker (produces and saves a strategy) and the
// assessment worker (produces the cycle's final verdict). Both drive the
// LLM invoker with a reduced tool catalog.
package workers

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
)

const designSystemPrompt = `You are an expert trading strategy designer. Your goal is to create
novel, well-reasoned trading strategies that can be trained and backtested.

Design strategies that are:
- Novel (different from recently saved strategies)
- Well-reasoned (a clear hypothesis for why it should work)
- Testable (uses only the indicators and symbols available to you)
- Realistic (reasonable parameter values)

Always validate your configuration before saving it. Call save_strategy_config
exactly once, with a unique name.`

const assessmentSystemPrompt = `You are an analyst reviewing the training and backtest results of a
trading strategy. Produce a single analytic verdict: promising, mediocre, or
poor, with concrete strengths, weaknesses, and suggestions for improvement.

Call save_assessment exactly once.`

// BuildDesignPrompt builds the design worker's system and user prompts,
// embedding all context up front so the model never needs a discovery tool
// round trip.
func BuildDesignPrompt(brief string, indicators []extensions.Indicator, symbols []extensions.Symbol, recentStrategies []string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Trigger reason: new research cycle\n\n")

	fmt.Fprintf(&b, "Available indicators (%d):\n", len(indicators))
	for _, ind := range indicators {
		fmt.Fprintf(&b, "- %s (%s), parameters: %s\n", ind.Name, ind.Type, strings.Join(ind.Parameters, ", "))
	}

	fmt.Fprintf(&b, "\nAvailable symbols (%d):\n", len(symbols))
	for _, sym := range symbols {
		fmt.Fprintf(&b, "- %s, timeframes: %s\n", sym.Symbol, strings.Join(sym.Timeframes, ", "))
	}

	fmt.Fprintf(&b, "\nRecently saved strategies (avoid duplicating these):\n")
	if len(recentStrategies) == 0 {
		b.WriteString("- none\n")
	}
	for _, name := range recentStrategies {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	if brief != "" {
		fmt.Fprintf(&b, "\nResearch brief: %s\n", brief)
	}

	return designSystemPrompt, b.String()
}

// AssessmentInput holds the metrics the assessment prompt summarizes.
type AssessmentInput struct {
	StrategyName string
	Training     map[string]any
	Backtest     map[string]any
}

// BuildAssessmentPrompt builds the assessment worker's system and user
// prompts.
func BuildAssessmentPrompt(input AssessmentInput) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Strategy: %s\n\n", input.StrategyName)

	fmt.Fprintf(&b, "Training metrics:\n")
	for k, v := range input.Training {
		fmt.Fprintf(&b, "- %s: %v\n", k, v)
	}

	fmt.Fprintf(&b, "\nBacktest metrics:\n")
	for k, v := range input.Backtest {
		fmt.Fprintf(&b, "- %s: %v\n", k, v)
	}

	if initial, ok := input.Training["initial_loss"].(float64); ok {
		if final, ok := input.Training["final_loss"].(float64); ok && initial != 0 {
			fmt.Fprintf(&b, "\nLoss improvement ratio: %.4f\n", (initial-final)/initial)
		}
	}

	return assessmentSystemPrompt, b.String()
}
