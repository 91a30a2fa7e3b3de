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

// Package llm owns the LLM context: the single point through which prompts
// are mutated and requests are issued. Reads are concurrent; writes go
// through an exclusive write session.
//
// Provider clients sit behind the PromptExecutor boundary. The runtime does
// not know provider wire formats; it hands over the prompt, the bound model
// name and the tool descriptors, and receives response messages or a frame
// stream back.
package llm

import (
	"context"
	"iter"

	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// PromptExecutor is the provider-client boundary.
type PromptExecutor interface {
	// Execute performs one complete request and returns the produced
	// response messages in order (assistant, reasoning, tool calls).
	Execute(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) ([]message.Message, error)

	// ExecuteStreaming performs one request delivered as a lazy frame
	// sequence terminated by a single end frame.
	ExecuteStreaming(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) iter.Seq2[message.StreamFrame, error]
}

// MultiChoiceExecutor is implemented by executors whose provider supports
// n-way sampling natively. Executors without it get n sequential requests.
type MultiChoiceExecutor interface {
	ExecuteMultiple(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor, n int) ([][]message.Message, error)
}

// executeMultiple issues an n-way request, falling back to n sequential
// calls when the executor lacks native support.
func executeMultiple(ctx context.Context, executor PromptExecutor, prompt message.Prompt, model string, tools []tool.Descriptor, n int) ([][]message.Message, error) {
	if mc, ok := executor.(MultiChoiceExecutor); ok {
		return mc.ExecuteMultiple(ctx, prompt, model, tools, n)
	}

	choices := make([][]message.Message, 0, n)
	for i := 0; i < n; i++ {
		responses, err := executor.Execute(ctx, prompt, model, tools)
		if err != nil {
			return nil, err
		}
		choices = append(choices, responses)
	}
	return choices, nil
}

// CollectStream drains a frame sequence into the messages it denotes:
// accumulated text becomes one assistant message, tool-call deltas become
// tool-call messages. The end frame's finish reason and usage land on the
// last produced message.
func CollectStream(frames iter.Seq2[message.StreamFrame, error], clock Clock) ([]message.Message, error) {
	var text string
	var calls []message.ToolCallDelta
	var end *message.StreamFrame

	for frame, err := range frames {
		if err != nil {
			return nil, err
		}
		switch frame.Kind {
		case message.FrameText:
			text += frame.TextDelta
		case message.FrameToolCall:
			if frame.ToolCall != nil {
				calls = appendToolCallDelta(calls, *frame.ToolCall)
			}
		case message.FrameEnd:
			f := frame
			end = &f
		}
	}

	now := clock.Now()
	var meta message.ResponseMeta
	meta.Timestamp = now
	if end != nil {
		meta.FinishReason = end.FinishReason
		meta.Usage = end.Usage
	}

	var out []message.Message
	if text != "" {
		out = append(out, message.Assistant{Content: text, Meta: message.ResponseMeta{Timestamp: now}})
	}
	for _, call := range calls {
		out = append(out, message.ToolCall{
			ID:        call.ID,
			Tool:      call.Tool,
			Arguments: call.ArgumentsJSON,
			Meta:      message.ResponseMeta{Timestamp: now},
		})
	}
	if len(out) > 0 {
		// Finish reason and usage belong to the request, recorded once.
		switch last := out[len(out)-1].(type) {
		case message.Assistant:
			last.Meta = meta
			out[len(out)-1] = last
		case message.ToolCall:
			last.Meta.FinishReason = meta.FinishReason
			last.Meta.Usage = meta.Usage
			out[len(out)-1] = last
		}
	}
	return out, nil
}

// appendToolCallDelta merges a delta into the accumulated calls: deltas with
// a known ID extend that call's arguments, new IDs start new calls.
func appendToolCallDelta(calls []message.ToolCallDelta, delta message.ToolCallDelta) []message.ToolCallDelta {
	if delta.ID != "" {
		for i := range calls {
			if calls[i].ID == delta.ID {
				calls[i].ArgumentsJSON += delta.ArgumentsJSON
				if delta.Tool != "" {
					calls[i].Tool = delta.Tool
				}
				return calls
			}
		}
	}
	return append(calls, delta)
}
