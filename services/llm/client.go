// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides interfaces and implementations for tool-use-capable
// LLM backends.
//
// This package defines the LLMClient interface the agentic loop drives: one
// blocking call that sends a system prompt, a message history, and a tool
// catalog, and gets back a single assistant turn plus token usage. There is
// no streaming surface here — nothing in this module's scope renders tokens
// to a live client.
//
// # Architecture
//
// The package follows the interface-first pattern:
//   - LLMClient interface defines the contract
//   - AnthropicClient implements it for Claude models (primary backend)
//   - OpenAIClient implements it for OpenAI models (secondary backend)
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/AleutianAI/researchorchestrator/services/orchestrator/datatypes"
)

// InvokeParams holds the per-call parameters the agentic loop passes to
// LLMClient.Invoke.
//
// # Fields
//
//   - Model: the model identifier to invoke. An empty string falls back to
//     the backend's configured default; other names are passed through
//     unchecked.
//   - MaxOutputTokens: the per-call output token ceiling.
//   - Temperature: sampling temperature. nil uses the backend's default.
type InvokeParams struct {
	Model           string
	MaxOutputTokens int
	Temperature     *float32
}

// LLMClient is the standard interface every tool-use-capable backend
// implements.
//
// # Description
//
// LLMClient abstracts the external LLM service interface:
// {model, system, messages, tools, max_tokens} in, a response carrying
// content blocks (text and/or tool_use) plus {input_tokens, output_tokens}
// out. Tool-result turns are ordinary messages in the history, built by the
// caller via datatypes.Message{Role: "user", Content: [...ContentToolResult]}.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the invoker may run one
// goroutine per active worker.
type LLMClient interface {
	// Invoke sends one turn of the conversation and returns the assistant's
	// response.
	//
	// # Inputs
	//
	//   - ctx: honored for cancellation and the per-request timeout (spec
	//     §5); a cancelled ctx aborts the in-flight HTTP request, not just
	//     the wait.
	//   - systemPrompt: the fixed system prompt for this invocation.
	//   - messages: the conversation so far, oldest first.
	//   - tools: the tool catalog to offer the model this turn. Empty means
	//     no tool use is possible, and the model can only return text.
	//   - params: per-call model/token/sampling parameters.
	//
	// # Outputs
	//
	//   - datatypes.Message: the assistant's response turn (text and/or
	//     tool_use content blocks).
	//   - datatypes.Usage: token accounting for this call only, as reported
	//     by the provider. Populated even when err is non-nil, wherever the
	//     provider returned a partial usage block before failing.
	//   - error: non-nil on transport failure, API error, or context
	//     cancellation/timeout.
	Invoke(ctx context.Context, systemPrompt string, messages []datatypes.Message, tools []datatypes.ToolDefinition, params InvokeParams) (datatypes.Message, datatypes.Usage, error)
}
