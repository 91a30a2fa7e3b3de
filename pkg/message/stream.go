// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package message

// FrameKind discriminates streaming frames.
type FrameKind string

const (
	FrameText     FrameKind = "text"
	FrameToolCall FrameKind = "tool_call"
	FrameEnd      FrameKind = "end"
)

// ToolCallDelta is an incremental tool-call fragment within a stream.
type ToolCallDelta struct {
	ID            string `json:"id,omitempty"`
	Tool          string `json:"tool,omitempty"`
	ArgumentsJSON string `json:"arguments,omitempty"`
}

// StreamFrame is one unit of an incrementally delivered LLM response.
// A stream is terminated by exactly one end frame carrying the finish
// reason and token usage.
type StreamFrame struct {
	Kind         FrameKind      `json:"kind"`
	TextDelta    string         `json:"text_delta,omitempty"`
	ToolCall     *ToolCallDelta `json:"tool_call,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        *TokenUsage    `json:"usage,omitempty"`
}

// TextFrame creates a text delta frame.
func TextFrame(delta string) StreamFrame {
	return StreamFrame{Kind: FrameText, TextDelta: delta}
}

// ToolCallFrame creates a tool-call delta frame.
func ToolCallFrame(delta ToolCallDelta) StreamFrame {
	return StreamFrame{Kind: FrameToolCall, ToolCall: &delta}
}

// EndFrame creates the terminating frame of a stream.
func EndFrame(finishReason string, usage *TokenUsage) StreamFrame {
	return StreamFrame{Kind: FrameEnd, FinishReason: finishReason, Usage: usage}
}
