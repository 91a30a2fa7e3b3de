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

import "fmt"

// ToolChoiceKind selects how the model may use tools for a request.
type ToolChoiceKind string

const (
	ToolChoiceNone     ToolChoiceKind = "none"
	ToolChoiceAuto     ToolChoiceKind = "auto"
	ToolChoiceRequired ToolChoiceKind = "required"
	ToolChoiceNamed    ToolChoiceKind = "named"
)

// ToolChoice constrains tool usage. Name is set only for ToolChoiceNamed.
type ToolChoice struct {
	Kind ToolChoiceKind `json:"kind"`
	Name string         `json:"name,omitempty"`
}

// Params are the generation parameters attached to a prompt. All fields are
// optional; nil means provider default. Provider-specific parameters extend
// the generic contract without altering it.
type Params struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	NumberOfChoices  *int           `json:"number_of_choices,omitempty"`
	Schema           map[string]any `json:"schema,omitempty"`
	ToolChoice       *ToolChoice    `json:"tool_choice,omitempty"`
	Speculation      string         `json:"speculation,omitempty"`
	User             string         `json:"user,omitempty"`
	ProviderSpecific map[string]any `json:"provider_specific,omitempty"`
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("temperature must be in [0, 2], got %v", *p.Temperature)
	}
	if p.MaxTokens != nil && *p.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be >= 1, got %d", *p.MaxTokens)
	}
	if p.NumberOfChoices != nil && *p.NumberOfChoices < 1 {
		return fmt.Errorf("number_of_choices must be >= 1, got %d", *p.NumberOfChoices)
	}
	return nil
}

// Prompt is an immutable ordered message sequence with generation parameters.
// Message order reflects conversational time. Prompts are value-typed and
// replaced atomically; With and friends return new values.
type Prompt struct {
	ID       string
	Messages []Message
	Params   Params
}

// NewPrompt creates a prompt with the given id and messages.
func NewPrompt(id string, messages ...Message) Prompt {
	return Prompt{ID: id, Messages: messages}
}

// With returns a copy of the prompt with messages appended.
func (p Prompt) With(messages ...Message) Prompt {
	combined := make([]Message, 0, len(p.Messages)+len(messages))
	combined = append(combined, p.Messages...)
	combined = append(combined, messages...)
	p.Messages = combined
	return p
}

// WithMessages returns a copy of the prompt with the history replaced.
func (p Prompt) WithMessages(messages []Message) Prompt {
	p.Messages = append([]Message(nil), messages...)
	return p
}

// WithParams returns a copy of the prompt with the given parameters.
func (p Prompt) WithParams(params Params) Prompt {
	p.Params = params
	return p
}

// Copy returns a prompt whose message slice is detached from the receiver.
func (p Prompt) Copy() Prompt {
	p.Messages = append([]Message(nil), p.Messages...)
	return p
}

// LastMessage returns the final message, or nil for an empty prompt.
func (p Prompt) LastMessage() Message {
	if len(p.Messages) == 0 {
		return nil
	}
	return p.Messages[len(p.Messages)-1]
}
