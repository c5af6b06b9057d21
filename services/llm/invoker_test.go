// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

type scriptedClient struct {
	responses []datatypes.Message
	usages    []datatypes.Usage
	errs      []error
	calls     int
}

func (s *scriptedClient) Invoke(ctx context.Context, systemPrompt string, messages []datatypes.Message, tools []datatypes.ToolDefinition, params InvokeParams) (datatypes.Message, datatypes.Usage, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		return datatypes.Message{}, datatypes.Usage{}, errors.New("scripted client ran out of responses")
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], s.usages[i], err
}

func toolUseMessage(toolUseID, toolName string, input map[string]any) datatypes.Message {
	return datatypes.Message{
		Role: "assistant",
		Content: []datatypes.ContentBlock{
			{Type: datatypes.ContentToolUse, ToolUseID: toolUseID, ToolName: toolName, ToolInput: input},
		},
	}
}

func TestInvoker_SucceedsOnTextResponse(t *testing.T) {
	client := &scriptedClient{
		responses: []datatypes.Message{datatypes.TextMessage("assistant", "strategy saved")},
		usages:    []datatypes.Usage{{InputTokens: 100, OutputTokens: 20}},
	}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 5, MaxTotalInputTokens: 1000})
	result := inv.Run(context.Background(), "system", "design a strategy", nil, nil)

	require.True(t, result.Success)
	assert.Equal(t, "strategy saved", result.OutputText)
	assert.Equal(t, 100, result.InputTokensTotal)
	assert.Equal(t, 20, result.OutputTokensTotal)
}

func TestInvoker_ExecutesToolCallsAndContinues(t *testing.T) {
	client := &scriptedClient{
		responses: []datatypes.Message{
			toolUseMessage("tu_1", "save_strategy_config", map[string]any{"name": "s1"}),
			datatypes.TextMessage("assistant", "done"),
		},
		usages: []datatypes.Usage{{InputTokens: 10, OutputTokens: 5}, {InputTokens: 10, OutputTokens: 5}},
	}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 5, MaxTotalInputTokens: 1000})

	var executedTool string
	executor := func(ctx context.Context, name string, input map[string]any) datatypes.ToolResult {
		executedTool = name
		return datatypes.ToolResult{"success": true}
	}

	result := inv.Run(context.Background(), "system", "design", nil, executor)
	require.True(t, result.Success)
	assert.Equal(t, "save_strategy_config", executedTool)
	assert.Equal(t, 20, result.InputTokensTotal)
	assert.Equal(t, "done", result.OutputText)
}

func TestInvoker_FailsOnIterationLimit(t *testing.T) {
	responses := make([]datatypes.Message, 0)
	usages := make([]datatypes.Usage, 0)
	for i := 0; i < 3; i++ {
		responses = append(responses, toolUseMessage("tu", "get_available_symbols", nil))
		usages = append(usages, datatypes.Usage{InputTokens: 1, OutputTokens: 1})
	}
	client := &scriptedClient{responses: responses, usages: usages}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 3, MaxTotalInputTokens: 1000})

	executor := func(ctx context.Context, name string, input map[string]any) datatypes.ToolResult {
		return datatypes.ToolResult{"symbols": []string{}}
	}

	result := inv.Run(context.Background(), "system", "design", nil, executor)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "iteration")
}

func TestInvoker_FailsOnInputTokenBudget(t *testing.T) {
	client := &scriptedClient{
		responses: []datatypes.Message{datatypes.TextMessage("assistant", "text")},
		usages:    []datatypes.Usage{{InputTokens: 99999, OutputTokens: 1}},
	}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 5, MaxTotalInputTokens: 100})
	result := inv.Run(context.Background(), "system", "design", nil, nil)

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "token budget")
	assert.Equal(t, 99999, result.InputTokensTotal)
}

func TestInvoker_ReturnsCancelledOnContextCancellation(t *testing.T) {
	client := &scriptedClient{
		responses: []datatypes.Message{datatypes.TextMessage("assistant", "text")},
		usages:    []datatypes.Usage{{}},
	}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 5, MaxTotalInputTokens: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := inv.Run(ctx, "system", "design", nil, nil)
	require.False(t, result.Success)
	assert.Equal(t, ErrCancelled.Error(), result.Error)
}

func TestInvoker_TransportErrorFails(t *testing.T) {
	client := &scriptedClient{
		responses: []datatypes.Message{{}},
		usages:    []datatypes.Usage{{}},
		errs:      []error{errors.New("connection reset")},
	}
	inv := NewInvoker(client, InvokerConfig{Model: "m", MaxIterations: 5, MaxTotalInputTokens: 1000})
	result := inv.Run(context.Background(), "system", "design", nil, nil)

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "connection reset")
}

func TestDefaultInvokerConfig_UsesEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "7")
	cfg := DefaultInvokerConfig()
	assert.Equal(t, 7, cfg.MaxIterations)
}

func TestDefaultInvokerConfig_Model_DefaultsWhenUnset(t *testing.T) {
	cfg := DefaultInvokerConfig()
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestDefaultInvokerConfig_Model_AcceptsValidTier(t *testing.T) {
	t.Setenv("AGENT_MODEL", "claude-haiku-4-5-20250514")
	cfg := DefaultInvokerConfig()
	assert.Equal(t, "claude-haiku-4-5-20250514", cfg.Model)
}

func TestDefaultInvokerConfig_Model_FallsBackOnInvalidName(t *testing.T) {
	t.Setenv("AGENT_MODEL", "gpt-5")
	cfg := DefaultInvokerConfig()
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestValidModels_TiersAndCosts(t *testing.T) {
	assert.Equal(t, ModelTierOpus, ValidModels["claude-opus-4-1"].Tier)
	assert.Equal(t, ModelTierSonnet, ValidModels["claude-sonnet-4-20250514"].Tier)
	assert.Equal(t, ModelTierHaiku, ValidModels["claude-haiku-4-5-20250514"].Tier)
	assert.Contains(t, ValidModels, DefaultModel)
}
