// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/pkg/validation"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// HandlerFunc is one tool's implementation. input is the tool_use block's
// decoded arguments; the returned map is serialized into the tool_result
// block's content.
type HandlerFunc func(ctx context.Context, input map[string]any) (datatypes.ToolResult, error)

// SavedAssessment is the structured payload the save_assessment handler
// captures, for the assessment worker to read back after the loop ends.
type SavedAssessment struct {
	Verdict     string
	Strengths   []string
	Weaknesses  []string
	Suggestions []string
	Path        string
}

// Executor is the local tool-handler registry an agentic loop run dispatches
// into. It carries cross-call state — the most recently saved
// strategy and assessment — that workers read after the loop completes.
//
// A fresh Executor must be constructed per worker run; its cross-call state
// is not safe to share across concurrent runs.
type Executor struct {
	strategiesDir string

	validator  extensions.StrategyValidator
	indicators extensions.IndicatorCatalog
	symbols    extensions.SymbolCatalog
	recent     RecentStrategiesReader

	handlers map[string]HandlerFunc

	currentStrategyName   string
	lastSavedStrategyName string
	lastSavedStrategyPath string
	lastSavedAssessment   *SavedAssessment
}

// RecentStrategiesReader lists previously saved strategies, most recent
// first. Implemented by the tools package itself (reading strategiesDir) or
// overridden in tests.
type RecentStrategiesReader interface {
	ListRecentStrategies(ctx context.Context, strategiesDir string, n int) ([]string, error)
}

// NewExecutor builds an Executor wired to its external collaborators and the
// on-disk strategies directory.
func NewExecutor(strategiesDir string, opts extensions.ServiceOptions, recent RecentStrategiesReader) *Executor {
	e := &Executor{
		strategiesDir: strategiesDir,
		validator:     opts.StrategyValidator,
		indicators:    opts.IndicatorCatalog,
		symbols:       opts.SymbolCatalog,
		recent:        recent,
	}
	e.handlers = map[string]HandlerFunc{
		ToolValidateStrategyConfig: e.handleValidateStrategyConfig,
		ToolSaveStrategyConfig:     e.handleSaveStrategyConfig,
		ToolSaveAssessment:         e.handleSaveAssessment,
		ToolGetAvailableIndicators: e.handleGetAvailableIndicators,
		ToolGetAvailableSymbols:    e.handleGetAvailableSymbols,
		ToolGetRecentStrategies:    e.handleGetRecentStrategies,
	}
	return e
}

// SetCurrentStrategyName seeds the strategy the assessment worker is
// assessing, so save_assessment knows where to write.
func (e *Executor) SetCurrentStrategyName(name string) {
	e.currentStrategyName = name
}

// LastSavedStrategy returns the most recently saved strategy's name and
// path, and whether a save has happened yet.
func (e *Executor) LastSavedStrategy() (name, path string, ok bool) {
	if e.lastSavedStrategyName == "" {
		return "", "", false
	}
	return e.lastSavedStrategyName, e.lastSavedStrategyPath, true
}

// LastSavedAssessment returns the most recently saved assessment, if any.
func (e *Executor) LastSavedAssessment() (SavedAssessment, bool) {
	if e.lastSavedAssessment == nil {
		return SavedAssessment{}, false
	}
	return *e.lastSavedAssessment, true
}

// Execute dispatches name to its handler. Unknown names and handler errors
// are both turned into error-shaped results rather than propagated, so the
// model can observe and react.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]any) datatypes.ToolResult {
	handler, ok := e.handlers[name]
	if !ok {
		slog.Warn("unknown tool requested", "tool", name)
		return datatypes.ToolResult{"error": fmt.Sprintf("Unknown tool: %s", name)}
	}
	result, err := handler(ctx, input)
	if err != nil {
		slog.Error("tool execution failed", "tool", name, "error", err)
		return datatypes.ToolResult{"error": fmt.Sprintf("Tool execution failed: %s", err)}
	}
	return result
}

func (e *Executor) handleValidateStrategyConfig(ctx context.Context, input map[string]any) (datatypes.ToolResult, error) {
	config, _ := input["config"].(map[string]any)
	result, err := e.validator.Validate(ctx, config)
	if err != nil {
		return nil, err
	}
	return datatypes.ToolResult{
		"valid":       result.Valid,
		"errors":      result.Errors,
		"warnings":    result.Warnings,
		"suggestions": result.Suggestions,
	}, nil
}

func (e *Executor) handleSaveStrategyConfig(ctx context.Context, input map[string]any) (datatypes.ToolResult, error) {
	name, _ := input["name"].(string)
	config, _ := input["config"].(map[string]any)
	description, _ := input["description"].(string)

	if err := validation.ValidateStrategyName(name); err != nil {
		return datatypes.ToolResult{"success": false, "errors": []string{err.Error()}}, nil
	}

	validated, err := e.validator.Validate(ctx, config)
	if err != nil {
		return nil, err
	}
	if !validated.Valid {
		return datatypes.ToolResult{"success": false, "errors": validated.Errors, "suggestions": validated.Suggestions}, nil
	}

	unique, err := e.validator.CheckNameUnique(ctx, name, e.strategiesDir)
	if err != nil {
		return nil, err
	}
	if !unique.Valid {
		return datatypes.ToolResult{"success": false, "errors": unique.Errors, "suggestions": unique.Suggestions}, nil
	}

	document := map[string]any{"name": name, "description": description}
	for k, v := range config {
		document[k] = v
	}
	encoded, err := yaml.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("marshal strategy yaml: %w", err)
	}

	if err := os.MkdirAll(e.strategiesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create strategies directory: %w", err)
	}
	path := filepath.Join(e.strategiesDir, name+".yaml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write strategy file: %w", err)
	}

	e.lastSavedStrategyName = name
	e.lastSavedStrategyPath = path
	e.currentStrategyName = name

	return datatypes.ToolResult{"success": true, "path": path}, nil
}

func (e *Executor) handleSaveAssessment(ctx context.Context, input map[string]any) (datatypes.ToolResult, error) {
	if e.currentStrategyName == "" {
		return datatypes.ToolResult{"success": false, "error": "no current strategy name set"}, nil
	}

	verdict, _ := input["verdict"].(string)
	switch verdict {
	case "promising", "mediocre", "poor":
	default:
		return datatypes.ToolResult{"success": false, "error": fmt.Sprintf("invalid verdict %q", verdict)}, nil
	}

	strengths := toStringSlice(input["strengths"])
	weaknesses := toStringSlice(input["weaknesses"])
	suggestions := toStringSlice(input["suggestions"])

	assessedAt := time.Now().UTC().Format(time.RFC3339)
	document := map[string]any{
		"verdict":     verdict,
		"strengths":   strengths,
		"weaknesses":  weaknesses,
		"suggestions": suggestions,
		"assessed_at": assessedAt,
	}
	encoded, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal assessment: %w", err)
	}

	dir := filepath.Join(e.strategiesDir, e.currentStrategyName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create strategy assessment directory: %w", err)
	}
	path := filepath.Join(dir, "assessment.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write assessment file: %w", err)
	}

	e.lastSavedAssessment = &SavedAssessment{
		Verdict:     verdict,
		Strengths:   strengths,
		Weaknesses:  weaknesses,
		Suggestions: suggestions,
		Path:        path,
	}

	return datatypes.ToolResult{"success": true, "path": path}, nil
}

func (e *Executor) handleGetAvailableIndicators(ctx context.Context, _ map[string]any) (datatypes.ToolResult, error) {
	indicators, err := e.indicators.ListIndicators(ctx)
	if err != nil {
		slog.Warn("indicator catalog lookup failed", "error", err)
		return datatypes.ToolResult{"indicators": []extensions.Indicator{}}, nil
	}
	if indicators == nil {
		indicators = []extensions.Indicator{}
	}
	return datatypes.ToolResult{"indicators": indicators}, nil
}

func (e *Executor) handleGetAvailableSymbols(ctx context.Context, _ map[string]any) (datatypes.ToolResult, error) {
	symbols, err := e.symbols.ListSymbols(ctx)
	if err != nil {
		slog.Warn("symbol catalog lookup failed", "error", err)
		return datatypes.ToolResult{"symbols": []extensions.Symbol{}}, nil
	}

	clean := make([]extensions.Symbol, 0, len(symbols))
	for _, s := range symbols {
		sanitized, err := validation.SanitizeTicker(s.Symbol)
		if err != nil {
			slog.Warn("dropping malformed symbol from catalog", "symbol", s.Symbol, "error", err)
			continue
		}
		s.Symbol = sanitized
		clean = append(clean, s)
	}
	return datatypes.ToolResult{"symbols": clean}, nil
}

func (e *Executor) handleGetRecentStrategies(ctx context.Context, input map[string]any) (datatypes.ToolResult, error) {
	n := 5
	if raw, ok := input["n"]; ok {
		switch v := raw.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		}
	}
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}

	if e.recent == nil {
		return datatypes.ToolResult{"strategies": []string{}}, nil
	}
	names, err := e.recent.ListRecentStrategies(ctx, e.strategiesDir, n)
	if err != nil {
		slog.Warn("recent strategies lookup failed", "error", err)
		return datatypes.ToolResult{"strategies": []string{}}, nil
	}
	return datatypes.ToolResult{"strategies": names}, nil
}

func toStringSlice(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
