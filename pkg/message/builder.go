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

import "time"

// Builder assembles prompts in insertion order. Consecutive same-role
// messages are kept distinct, never coalesced.
type Builder struct {
	id       string
	params   Params
	messages []Message
	now      func() time.Time
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock sets the timestamp source. Defaults to time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithParamsOption sets the prompt parameters up front.
func WithParamsOption(params Params) BuilderOption {
	return func(b *Builder) { b.params = params }
}

// NewBuilder creates a prompt builder.
func NewBuilder(id string, opts ...BuilderOption) *Builder {
	b := &Builder{id: id, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// System appends a system message.
func (b *Builder) System(content string) *Builder {
	b.messages = append(b.messages, System{Content: content, Meta: RequestMeta{Timestamp: b.now()}})
	return b
}

// User appends a user message with optional attachments.
func (b *Builder) User(content string, attachments ...Attachment) *Builder {
	b.messages = append(b.messages, User{Content: content, Attachments: attachments, Meta: RequestMeta{Timestamp: b.now()}})
	return b
}

// Assistant appends an assistant message.
func (b *Builder) Assistant(content string) *Builder {
	b.messages = append(b.messages, Assistant{Content: content, Meta: ResponseMeta{Timestamp: b.now()}})
	return b
}

// Reasoning appends a reasoning message.
func (b *Builder) Reasoning(content string) *Builder {
	b.messages = append(b.messages, Reasoning{Content: content, Meta: ResponseMeta{Timestamp: b.now()}})
	return b
}

// Tool appends a tool-call message with raw JSON arguments.
func (b *Builder) Tool(name, argumentsJSON string) *Builder {
	b.messages = append(b.messages, ToolCall{Tool: name, Arguments: argumentsJSON, Meta: ResponseMeta{Timestamp: b.now()}})
	return b
}

// ToolResult appends a tool-result message. id may be empty when the
// provider does not correlate calls and results.
func (b *Builder) ToolResult(name, content, id string) *Builder {
	b.messages = append(b.messages, ToolResult{ID: id, Tool: name, Content: content, Meta: RequestMeta{Timestamp: b.now()}})
	return b
}

// Append adds an already constructed message.
func (b *Builder) Append(messages ...Message) *Builder {
	b.messages = append(b.messages, messages...)
	return b
}

// Params sets the prompt parameters.
func (b *Builder) Params(params Params) *Builder {
	b.params = params
	return b
}

// Build produces the prompt value. The builder can keep being used; the
// returned prompt owns a detached message slice.
func (b *Builder) Build() Prompt {
	return Prompt{
		ID:       b.id,
		Messages: append([]Message(nil), b.messages...),
		Params:   b.params,
	}
}
