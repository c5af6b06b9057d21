// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []toolsDefinition  `json:"tools,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
}

// anthropicMessage mirrors datatypes.Message in Anthropic's wire shape: a
// role plus an ordered list of content blocks, never a plain string, so
// that tool_use/tool_result turns round-trip without a separate encoding.
type anthropicMessage struct {
	Role    string                   `json:"role"`
	Content []anthropicContentOnWire `json:"content"`
}

type anthropicContentOnWire struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use (assistant -> us)
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result (us -> assistant)
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicResponse struct {
	ID      string                   `json:"id"`
	Type    string                   `json:"type"`
	Role    string                   `json:"role"`
	Content []anthropicContentOnWire `json:"content"`
	Usage   anthropicUsage           `json:"usage"`
	Error   *anthropicError          `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type toolsDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"input_schema"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicClient is the primary LLMClient backend, speaking Anthropic's
// Messages API directly over net/http.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
}

// NewAnthropicClient reads ANTHROPIC_API_KEY (or the Podman secret file
// fallback) and CLAUDE_MODEL from the environment.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := os.Getenv("CLAUDE_MODEL")

	if apiKey == "" {
		secretPath := "/run/secrets/anthropic_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("read Anthropic API key from Podman secret file")
		}
	}

	if apiKey == "" {
		slog.Warn("ANTHROPIC_API_KEY is missing")
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is missing")
	}

	if model == "" {
		model = DefaultModel
		slog.Info("CLAUDE_MODEL not set, defaulting", "model", model)
	} else if _, ok := ValidModels[model]; !ok {
		slog.Warn("CLAUDE_MODEL is not a recognized model, using default", "requested", model, "default", DefaultModel)
		model = DefaultModel
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 300 * time.Second},
		apiKey:     apiKey,
		model:      model,
	}, nil
}

var _ LLMClient = (*AnthropicClient)(nil)

// Invoke sends one turn per the LLMClient contract.
func (a *AnthropicClient) Invoke(ctx context.Context, systemPrompt string, messages []datatypes.Message, tools []datatypes.ToolDefinition, params InvokeParams) (datatypes.Message, datatypes.Usage, error) {
	model := params.Model
	if model == "" {
		model = a.model
	}
	maxTokens := params.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	reqPayload := anthropicRequest{
		Model:       model,
		Messages:    toAnthropicMessages(messages),
		System:      buildSystemBlocks(systemPrompt),
		MaxTokens:   maxTokens,
		Tools:       toAnthropicTools(tools),
		Temperature: params.Temperature,
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("marshaling anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, defaultBaseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("building anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("sending anthropic request", "model", model, "message_count", len(messages), "tool_count", len(tools))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("reading anthropic response: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return datatypes.Message{}, datatypes.Usage{}, fmt.Errorf("parsing anthropic response: %w", err)
	}
	usage := datatypes.Usage{InputTokens: apiResp.Usage.InputTokens, OutputTokens: apiResp.Usage.OutputTokens}

	if resp.StatusCode != http.StatusOK {
		if apiResp.Error != nil {
			return datatypes.Message{}, usage, fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
		}
		return datatypes.Message{}, usage, fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if apiResp.Error != nil {
		return datatypes.Message{}, usage, fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	msg, err := fromAnthropicContent(apiResp.Role, apiResp.Content)
	if err != nil {
		return datatypes.Message{}, usage, err
	}
	return msg, usage, nil
}

func buildSystemBlocks(systemPrompt string) []systemBlock {
	if systemPrompt == "" {
		return nil
	}
	block := systemBlock{Type: "text", Text: systemPrompt}
	if len(systemPrompt) > 1024 {
		block.CacheControl = &cacheControl{Type: "ephemeral"}
	}
	return []systemBlock{block}
}

func toAnthropicTools(tools []datatypes.ToolDefinition) []toolsDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]toolsDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolsDefinition{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

func toAnthropicMessages(messages []datatypes.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropicContentOnWire
		for _, b := range m.Content {
			switch b.Type {
			case datatypes.ContentText:
				blocks = append(blocks, anthropicContentOnWire{Type: "text", Text: b.Text})
			case datatypes.ContentToolUse:
				blocks = append(blocks, anthropicContentOnWire{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: b.ToolInput})
			case datatypes.ContentToolResult:
				blocks = append(blocks, anthropicContentOnWire{Type: "tool_result", ToolUseID: b.ToolUseID, Content: b.ToolResultContent, IsError: b.ToolResultIsError})
			}
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: blocks})
	}
	return out
}

func fromAnthropicContent(role string, content []anthropicContentOnWire) (datatypes.Message, error) {
	if len(content) == 0 {
		return datatypes.Message{}, fmt.Errorf("received empty content from Anthropic")
	}
	blocks := make([]datatypes.ContentBlock, 0, len(content))
	for _, c := range content {
		switch c.Type {
		case "text":
			blocks = append(blocks, datatypes.ContentBlock{Type: datatypes.ContentText, Text: c.Text})
		case "tool_use":
			blocks = append(blocks, datatypes.ContentBlock{Type: datatypes.ContentToolUse, ToolUseID: c.ID, ToolName: c.Name, ToolInput: c.Input})
		case "thinking":
			// Extended-thinking blocks carry no contract obligation here; log and drop.
			slog.Debug("dropping anthropic thinking block")
		}
	}
	if role == "" {
		role = "assistant"
	}
	return datatypes.Message{Role: role, Content: blocks}, nil
}
