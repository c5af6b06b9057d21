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

// ContentBlockType tags the variant held by a ContentBlock.
//
// # Description
//
// The agentic loop is expressed as a small tagged union
// rather than dynamic typing: every block carries exactly one of a text
// fragment, a tool-use request, or a tool-result payload, selected by Type.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
)

// ContentBlock is one element of a Message's Content list.
//
// # Fields
//
//   - Type: which variant is populated; see ContentBlockType.
//   - Text: populated when Type is ContentText.
//   - ToolUseID: the provider-assigned id correlating a tool_use block with
//     its eventual tool_result block. Populated for both variants.
//   - ToolName / ToolInput: populated when Type is ContentToolUse.
//   - ToolResultContent: populated when Type is ContentToolResult; the
//     executor's JSON-serialized result (or error payload).
//   - ToolResultIsError: true if ToolResultContent represents a tool failure
//     rather than a successful result, so the model can distinguish the two.
type ContentBlock struct {
	Type              ContentBlockType
	Text              string
	ToolUseID         string
	ToolName          string
	ToolInput         map[string]any
	ToolResultContent string
	ToolResultIsError bool
}

// Message is one turn of a conversation with the LLM.
//
// # Fields
//
//   - Role: "system", "user", or "assistant".
//   - Content: an ordered list of content blocks. A plain text turn has a
//     single ContentText block; a tool-result turn has one ContentToolResult
//     block per tool call answered.
type Message struct {
	Role    string
	Content []ContentBlock
}

// TextMessage is a convenience constructor for a single-text-block message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: ContentText, Text: text}}}
}

// Text concatenates all text blocks in the message, in order.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == ContentText {
			out += b.Text
		}
	}
	return out
}

// ToolUseBlocks returns the tool_use blocks in the message, in order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == ContentToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Usage is the token accounting reported alongside one LLM response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// AgentResult is the outcome of one LLM invoker run.
//
// # Description
//
// Token totals are always populated, even on failure, so that partial work
// is attributable for cost accounting.
//
// # Fields
//
//   - Success: true iff the model produced a terminal text response without
//     exceeding any budget and without a transport/cancellation error.
//   - OutputText: concatenated text blocks of the final assistant turn.
//     Empty when Success is false.
//   - InputTokensTotal / OutputTokensTotal: sum of per-call usage across the
//     whole run, in arrival order.
//   - Error: non-empty iff Success is false; one of: an iteration limit, a
//     token/input budget, a transport error, or a CANCELLED-class message.
type AgentResult struct {
	Success           bool
	OutputText        string
	InputTokensTotal  int
	OutputTokensTotal int
	Error             string
}
