// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// OpenAIClient is the secondary LLMClient backend, used when LLM_BACKEND_TYPE
// is set to "openai". It maps the tagged-union message/tool-use contract onto
// go-openai's native ChatCompletionMessage.ToolCalls/ToolCallID fields.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("read OpenAI API key from Podman secret file")
		} else {
			slog.Error("OPENAI_API_KEY not set and secret file not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting", "model", model)
	}
	slog.Info("initializing OpenAI client", "model", model)
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}, nil
}

var _ LLMClient = (*OpenAIClient)(nil)

// Invoke sends one turn per the LLMClient contract.
func (o *OpenAIClient) Invoke(ctx context.Context, systemPrompt string, messages []datatypes.Message, tools []datatypes.ToolDefinition, params InvokeParams) (datatypes.Message, datatypes.Usage, error) {
	model := params.Model
	if model == "" {
		model = o.model
	}

	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		msgs, err := toOpenAIMessages(m)
		if err != nil {
			return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("converting message for OpenAI: %w", err)
		}
		apiMessages = append(apiMessages, msgs...)
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: apiMessages,
		Tools:    toOpenAITools(tools),
	}
	if params.MaxOutputTokens > 0 {
		req.MaxCompletionTokens = params.MaxOutputTokens
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	usage := datatypes.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}

	if len(resp.Choices) == 0 {
		return datatypes.Message{}, usage, fmt.Errorf("OpenAI returned no choices")
	}

	return fromOpenAIMessage(resp.Choices[0].Message), usage, nil
}

func toOpenAITools(tools []datatypes.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// toOpenAIMessages expands one tagged-union Message into the (possibly
// multiple) role-specific messages go-openai expects: an assistant turn with
// tool_calls, or one "tool" message per tool_result block.
func toOpenAIMessages(m datatypes.Message) ([]openai.ChatCompletionMessage, error) {
	switch {
	case len(m.ToolUseBlocks()) > 0:
		var calls []openai.ToolCall
		for _, b := range m.ToolUseBlocks() {
			args, err := json.Marshal(b.ToolInput)
			if err != nil {
				return nil, fmt.Errorf("marshaling tool input for %s: %w", b.ToolName, err)
			}
			calls = append(calls, openai.ToolCall{
				ID:   b.ToolUseID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      b.ToolName,
					Arguments: string(args),
				},
			})
		}
		return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleAssistant, Content: m.Text(), ToolCalls: calls}}, nil
	default:
		var out []openai.ChatCompletionMessage
		var hasToolResult bool
		for _, b := range m.Content {
			if b.Type == datatypes.ContentToolResult {
				hasToolResult = true
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool, Content: b.ToolResultContent, ToolCallID: b.ToolUseID})
			}
		}
		if hasToolResult {
			return out, nil
		}
		return []openai.ChatCompletionMessage{{Role: m.Role, Content: m.Text()}}, nil
	}
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) datatypes.Message {
	var blocks []datatypes.ContentBlock
	if m.Content != "" {
		blocks = append(blocks, datatypes.ContentBlock{Type: datatypes.ContentText, Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		var input map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			slog.Warn("failed to parse OpenAI tool call arguments", "tool", tc.Function.Name, "error", err)
		}
		blocks = append(blocks, datatypes.ContentBlock{
			Type:      datatypes.ContentToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}
	return datatypes.Message{Role: "assistant", Content: blocks}
}
