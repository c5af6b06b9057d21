// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

func TestNewAnthropicClient_InvalidModelFallsBackToDefault(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("CLAUDE_MODEL", "not-a-real-model")

	client, err := NewAnthropicClient()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.model)
}

func TestNewAnthropicClient_ValidModelAccepted(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("CLAUDE_MODEL", "claude-sonnet-4-20250514")

	client, err := NewAnthropicClient()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", client.model)
}

func TestToAnthropicMessages_RoundTripsToolBlocks(t *testing.T) {
	messages := []datatypes.Message{
		datatypes.TextMessage("user", "design a strategy"),
		{
			Role: "assistant",
			Content: []datatypes.ContentBlock{
				{Type: datatypes.ContentToolUse, ToolUseID: "tu_1", ToolName: "save_strategy_config", ToolInput: map[string]any{"name": "s1"}},
			},
		},
		{
			Role: "user",
			Content: []datatypes.ContentBlock{
				{Type: datatypes.ContentToolResult, ToolUseID: "tu_1", ToolResultContent: `{"success":true}`},
			},
		},
	}

	out := toAnthropicMessages(messages)
	require.Len(t, out, 3)
	assert.Equal(t, "text", out[0].Content[0].Type)
	assert.Equal(t, "tool_use", out[1].Content[0].Type)
	assert.Equal(t, "save_strategy_config", out[1].Content[0].Name)
	assert.Equal(t, "tool_result", out[2].Content[0].Type)
	assert.Equal(t, "tu_1", out[2].Content[0].ToolUseID)
}

func TestBuildSystemBlocks_CachesLongPrompts(t *testing.T) {
	short := buildSystemBlocks("short prompt")
	require.Len(t, short, 1)
	assert.Nil(t, short[0].CacheControl)

	long := make([]byte, 1025)
	for i := range long {
		long[i] = 'a'
	}
	withCache := buildSystemBlocks(string(long))
	require.Len(t, withCache, 1)
	require.NotNil(t, withCache[0].CacheControl)
	assert.Equal(t, "ephemeral", withCache[0].CacheControl.Type)
}

func TestFromAnthropicContent_TextAndToolUse(t *testing.T) {
	msg, err := fromAnthropicContent("assistant", []anthropicContentOnWire{
		{Type: "text", Text: "here is my plan"},
		{Type: "tool_use", ID: "tu_2", Name: "validate_strategy_config", Input: map[string]any{"config": map[string]any{}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "here is my plan", msg.Text())
	require.Len(t, msg.ToolUseBlocks(), 1)
	assert.Equal(t, "validate_strategy_config", msg.ToolUseBlocks()[0].ToolName)
}

func TestFromAnthropicContent_EmptyIsError(t *testing.T) {
	_, err := fromAnthropicContent("assistant", nil)
	assert.Error(t, err)
}

func TestToAnthropicTools(t *testing.T) {
	tools := []datatypes.ToolDefinition{
		{Name: "get_available_symbols", Description: "list symbols", InputSchema: map[string]any{"type": "object"}},
	}
	out := toAnthropicTools(tools)
	require.Len(t, out, 1)
	assert.Equal(t, "get_available_symbols", out[0].Name)
}
