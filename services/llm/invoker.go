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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// InvokerConfig bounds one agentic loop run.
type InvokerConfig struct {
	Model                  string
	MaxOutputTokensPerCall int
	RequestTimeout         time.Duration
	MaxIterations          int
	MaxTotalInputTokens    int
}

// ModelTier classifies a supported model by relative capability and cost.
type ModelTier string

const (
	ModelTierOpus   ModelTier = "opus"
	ModelTierSonnet ModelTier = "sonnet"
	ModelTierHaiku  ModelTier = "haiku"
)

// ModelInfo describes one entry of ValidModels.
type ModelInfo struct {
	Tier ModelTier
	Cost string
}

// ValidModels enumerates every model name AGENT_MODEL/CLAUDE_MODEL may
// select, tiered opus/sonnet/haiku. A name outside this table falls back to
// DefaultModel with a warning rather than being sent to the API unchecked.
var ValidModels = map[string]ModelInfo{
	"claude-opus-4-1":            {Tier: ModelTierOpus, Cost: "high"},
	"claude-opus-4-5-20250514":   {Tier: ModelTierOpus, Cost: "high"},
	"claude-sonnet-4-20250514":   {Tier: ModelTierSonnet, Cost: "medium"},
	"claude-3-5-sonnet-20240620": {Tier: ModelTierSonnet, Cost: "medium"},
	"claude-haiku-4-5-20250514":  {Tier: ModelTierHaiku, Cost: "low"},
	"claude-3-5-haiku-20241022":  {Tier: ModelTierHaiku, Cost: "low"},
}

// DefaultModel is used whenever AGENT_MODEL/CLAUDE_MODEL is unset or names a
// model outside ValidModels.
const DefaultModel = "claude-opus-4-1"

// DefaultInvokerConfig returns the agentic-loop defaults, each overridable
// from its own environment variable.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		Model:                  getEnvModel("AGENT_MODEL", DefaultModel),
		MaxOutputTokensPerCall: getEnvInt("AGENT_MAX_TOKENS", 4096),
		RequestTimeout:         time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 300)) * time.Second,
		MaxIterations:          getEnvInt("AGENT_MAX_ITERATIONS", 10),
		MaxTotalInputTokens:    getEnvInt("AGENT_MAX_INPUT_TOKENS", 50000),
	}
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvModel reads key and validates it against ValidModels, falling back
// to fallback with a warning when the variable is set but names an
// unrecognized model.
func getEnvModel(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if _, ok := ValidModels[v]; !ok {
		slog.Warn("unrecognized model, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// ToolExecutor executes one tool call and returns its result, already shaped
// for a tool_result content block. Implemented by tools.Executor.Execute.
type ToolExecutor func(ctx context.Context, name string, input map[string]any) datatypes.ToolResult

// ErrCancelled is wrapped into the AgentResult's Error string when the run's
// context is cancelled mid-loop.
var ErrCancelled = errors.New("CANCELLED")

// Invoker drives the bounded, cancellable agentic loop against
// an LLMClient and a local tool executor.
type Invoker struct {
	client LLMClient
	config InvokerConfig
}

// NewInvoker builds an Invoker for the given client and config.
func NewInvoker(client LLMClient, config InvokerConfig) *Invoker {
	return &Invoker{client: client, config: config}
}

// Model returns the configured model name, for callers that label metrics
// or logs by it without reaching into InvokerConfig themselves.
func (inv *Invoker) Model() string {
	return inv.config.Model
}

func (inv *Invoker) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if inv.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, inv.config.RequestTimeout)
}

// Run seeds the message list with userPrompt, repeatedly invokes the model,
// dispatches any requested tool calls through executor, and appends results,
// until the model returns a plain text response or a
// budget/cancellation/transport error occurs.
func (inv *Invoker) Run(ctx context.Context, systemPrompt, userPrompt string, toolCatalog []datatypes.ToolDefinition, executor ToolExecutor) datatypes.AgentResult {
	messages := []datatypes.Message{datatypes.TextMessage("user", userPrompt)}

	var inputTotal, outputTotal int

	for iteration := 0; ; iteration++ {
		if iteration >= inv.config.MaxIterations {
			return datatypes.AgentResult{
				Success:           false,
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
				Error:             fmt.Sprintf("exceeded maximum iterations (%d)", inv.config.MaxIterations),
			}
		}

		if err := ctx.Err(); err != nil {
			return datatypes.AgentResult{
				Success:           false,
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
				Error:             ErrCancelled.Error(),
			}
		}

		callCtx, cancel := inv.withRequestTimeout(ctx)
		response, usage, err := inv.client.Invoke(callCtx, systemPrompt, messages, toolCatalog, InvokeParams{
			Model:           inv.config.Model,
			MaxOutputTokens: inv.config.MaxOutputTokensPerCall,
		})
		cancel()

		inputTotal += usage.InputTokens
		outputTotal += usage.OutputTokens

		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return datatypes.AgentResult{
					Success:           false,
					InputTokensTotal:  inputTotal,
					OutputTokensTotal: outputTotal,
					Error:             ErrCancelled.Error(),
				}
			}
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return datatypes.AgentResult{
					Success:           false,
					InputTokensTotal:  inputTotal,
					OutputTokensTotal: outputTotal,
					Error:             fmt.Sprintf("request timed out after %s: %v", inv.config.RequestTimeout, err),
				}
			}
			return datatypes.AgentResult{
				Success:           false,
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
				Error:             fmt.Sprintf("LLM request failed: %v", err),
			}
		}

		if inputTotal > inv.config.MaxTotalInputTokens {
			return datatypes.AgentResult{
				Success:           false,
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
				Error:             fmt.Sprintf("exceeded maximum input token budget (%d > %d)", inputTotal, inv.config.MaxTotalInputTokens),
			}
		}

		toolUses := response.ToolUseBlocks()
		if len(toolUses) == 0 {
			return datatypes.AgentResult{
				Success:           true,
				OutputText:        response.Text(),
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
			}
		}

		messages = append(messages, response)

		if err := ctx.Err(); err != nil {
			return datatypes.AgentResult{
				Success:           false,
				InputTokensTotal:  inputTotal,
				OutputTokensTotal: outputTotal,
				Error:             ErrCancelled.Error(),
			}
		}

		var resultBlocks []datatypes.ContentBlock
		for _, toolUse := range toolUses {
			result := executor(ctx, toolUse.ToolName, toolUse.ToolInput)
			isError := false
			if v, ok := result["error"]; ok && v != nil {
				isError = true
			}
			encoded, err := encodeToolResult(result)
			if err != nil {
				encoded = fmt.Sprintf(`{"error":"failed to encode tool result: %s"}`, err)
				isError = true
			}
			resultBlocks = append(resultBlocks, datatypes.ContentBlock{
				Type:              datatypes.ContentToolResult,
				ToolUseID:         toolUse.ToolUseID,
				ToolResultContent: encoded,
				ToolResultIsError: isError,
			})
		}
		messages = append(messages, datatypes.Message{Role: "user", Content: resultBlocks})
	}
}

func encodeToolResult(result datatypes.ToolResult) (string, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
