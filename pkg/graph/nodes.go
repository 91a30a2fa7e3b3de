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

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/pipeline"
	"github.com/tolgaakin/weft/pkg/tool"
	"github.com/tolgaakin/weft/pkg/utils"
)

// Library nodes: the common node kinds provided with the executor. None of
// them is hard-wired; strategies compose them like any custom node.

// NodeLLMRequest appends the incoming value as a user message when it is a
// string, issues one LLM call and returns the last produced response
// message.
func NodeLLMRequest(b *Builder, id string) *Node {
	return b.Node(id, id, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		var result message.Message
		err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
			if text, ok := input.(string); ok {
				s.AppendMessages(message.User{Content: text, Meta: message.RequestMeta{Timestamp: ec.LLM().Clock().Now()}})
			}
			responses, err := s.RequestLLM(ctx)
			if err != nil {
				return err
			}
			if len(responses) == 0 {
				return fmt.Errorf("llm produced no response")
			}
			result = responses[len(responses)-1]
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// NodeExecuteTool looks up the tool named by the incoming tool-call
// message, invokes it, appends the tool result to the prompt and returns
// the result message.
func NodeExecuteTool(b *Builder, id string, registry *tool.Registry) *Node {
	return b.Node(id, id, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		call, ok := input.(message.ToolCall)
		if !ok {
			return nil, fmt.Errorf("expected tool call message, got %T", input)
		}

		t, err := registry.Get(call.Tool)
		if err != nil {
			return nil, NewError(KindToolNotRegistered, call.Tool, err)
		}

		ec.pipe.Fire(ctx, pipeline.ToolCallStarting{Run: ec, Tool: call.Tool, Args: call.Arguments})

		output, err := t.Execute(ctx, call.Arguments)
		if err != nil {
			var validation *tool.ValidationError
			if errors.As(err, &validation) {
				ec.pipe.Fire(ctx, pipeline.ToolValidationFailed{Run: ec, Tool: call.Tool, Args: call.Arguments, Err: err})
				return nil, NewError(KindToolValidationFailed, call.Tool, err)
			}
			ec.pipe.Fire(ctx, pipeline.ToolCallFailed{Run: ec, Tool: call.Tool, Args: call.Arguments, Err: err})
			return nil, NewError(KindToolExecutionFailed, call.Tool, err)
		}

		ec.pipe.Fire(ctx, pipeline.ToolCallCompleted{Run: ec, Tool: call.Tool, Args: call.Arguments, Result: output})

		result := message.ToolResult{
			ID:      call.ID,
			Tool:    call.Tool,
			Content: output,
			Meta:    message.RequestMeta{Timestamp: ec.LLM().Clock().Now()},
		}
		if err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
			s.AppendMessages(result)
			return nil
		}); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// NodeLLMSendResultsMultipleChoices appends incoming tool results (a single
// result or a slice) and issues an n-way request. The node's output is the
// [][]message.Message choice list for a selection node downstream.
func NodeLLMSendResultsMultipleChoices(b *Builder, id string, n int) *Node {
	return b.Node(id, id, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		var choices [][]message.Message
		err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
			switch v := input.(type) {
			case message.ToolResult:
				s.AppendMessages(v)
			case []message.ToolResult:
				for _, r := range v {
					s.AppendMessages(r)
				}
			}
			var err error
			choices, err = s.RequestLLMMultipleChoices(ctx, n)
			return err
		})
		if err != nil {
			return nil, err
		}
		return choices, nil
	})
}

// NodeSelectLLMChoice commits one of the incoming alternatives using the
// given selection strategy and returns the chosen response sequence.
func NodeSelectLLMChoice(b *Builder, id string, strategy llm.ChoiceSelectionStrategy) *Node {
	return b.Node(id, id, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		choices, ok := input.([][]message.Message)
		if !ok {
			return nil, fmt.Errorf("expected choice list, got %T", input)
		}

		idx, err := strategy.Select(ctx, choices)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(choices) {
			return nil, fmt.Errorf("choice index %d out of range [0, %d)", idx, len(choices))
		}

		if err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
			s.SelectChoice(choices[idx])
			return nil
		}); err != nil {
			return nil, err
		}
		return choices[idx], nil
	})
}

// TrimPolicy decides which messages survive a history trim.
type TrimPolicy interface {
	Trim(messages []message.Message) []message.Message
}

// MessageCountPolicy keeps every system message, placed first, plus the
// last Max non-system messages.
type MessageCountPolicy struct {
	Max int
}

func (p MessageCountPolicy) Trim(messages []message.Message) []message.Message {
	var system, rest []message.Message
	for _, m := range messages {
		if m.Role() == message.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	if len(rest) > p.Max {
		rest = rest[len(rest)-p.Max:]
	}
	return append(system, rest...)
}

// TokenBudgetPolicy keeps the most recent messages that fit the token
// budget, always retaining every system message, placed first.
type TokenBudgetPolicy struct {
	Model  string
	Budget int
}

func (p TokenBudgetPolicy) Trim(messages []message.Message) []message.Message {
	counter, err := utils.NewTokenCounter(p.Model)
	if err != nil {
		return messages
	}

	var system, rest []message.Message
	for _, m := range messages {
		if m.Role() == message.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	budget := p.Budget - counter.CountMessages(system)
	var fitted []message.Message
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := counter.CountMessages(rest[i : i+1])
		if used+cost > budget {
			break
		}
		fitted = append([]message.Message{rest[i]}, fitted...)
		used += cost
	}
	return append(system, fitted...)
}

// NodeTrimHistory applies the trim policy to the prompt in place within a
// write session. The incoming value passes through unchanged.
func NodeTrimHistory(b *Builder, id string, policy TrimPolicy) *Node {
	return b.Node(id, id, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
			prompt := s.Prompt()
			s.SetPrompt(prompt.WithMessages(policy.Trim(prompt.Messages)))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return input, nil
	})
}

// Edge forward helpers for the common message-shaped node outputs.

// ForwardToolCall fires when the node output is a tool-call message.
func ForwardToolCall(ctx context.Context, ec *ExecutionContext, output any) (any, bool) {
	if call, ok := output.(message.ToolCall); ok {
		return call, true
	}
	return nil, false
}

// ForwardAssistantText fires when the node output is an assistant message,
// forwarding its text content.
func ForwardAssistantText(ctx context.Context, ec *ExecutionContext, output any) (any, bool) {
	if assistant, ok := output.(message.Assistant); ok {
		return assistant.Content, true
	}
	return nil, false
}
