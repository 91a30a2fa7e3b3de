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

package llm

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// Context owns the prompt, the active tool list and the bound model for one
// agent run, and mediates every LLM request through its executor.
//
// Concurrency: any number of read sessions may run at once; at most one
// write session is active at a time, and acquisition blocks until the
// current writer finishes or the caller's context is cancelled.
type Context struct {
	dataMu sync.RWMutex
	prompt message.Prompt
	tools  []tool.Descriptor
	model  string

	writerSem chan struct{}

	executor    PromptExecutor
	environment map[string]any
	clock       Clock
}

// Config assembles a Context.
type Config struct {
	Prompt      message.Prompt
	Tools       []tool.Descriptor
	Model       string
	Executor    PromptExecutor
	Environment map[string]any
	Clock       Clock
}

// NewContext creates an LLM context.
func NewContext(cfg Config) (*Context, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("prompt executor is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Context{
		prompt:      cfg.Prompt,
		tools:       append([]tool.Descriptor(nil), cfg.Tools...),
		model:       cfg.Model,
		writerSem:   make(chan struct{}, 1),
		executor:    cfg.Executor,
		environment: cfg.Environment,
		clock:       clock,
	}, nil
}

// Clock returns the context's time source.
func (c *Context) Clock() Clock { return c.clock }

// Environment returns the run environment map.
func (c *Context) Environment() map[string]any { return c.environment }

// ReadSession is a concurrent-safe read-only view.
type ReadSession struct {
	ctx *Context
}

// WithReadSession runs fn with a read view of the context.
func (c *Context) WithReadSession(fn func(s ReadSession)) {
	fn(ReadSession{ctx: c})
}

// Prompt returns a copy of the current prompt.
func (s ReadSession) Prompt() message.Prompt {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return s.ctx.prompt.Copy()
}

// Tools returns a copy of the active tool descriptors.
func (s ReadSession) Tools() []tool.Descriptor {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return append([]tool.Descriptor(nil), s.ctx.tools...)
}

// Model returns the bound model name.
func (s ReadSession) Model() string {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return s.ctx.model
}

// WriteSession is the exclusive mutation and request surface.
type WriteSession struct {
	ctx *Context
}

// WithWriteSession acquires the exclusive writer slot (blocking until free
// or ctx is cancelled) and runs fn. The slot is released on every exit
// path, including panics.
func (c *Context) WithWriteSession(ctx context.Context, fn func(s *WriteSession) error) error {
	select {
	case c.writerSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.writerSem }()

	return fn(&WriteSession{ctx: c})
}

// Prompt returns a copy of the current prompt.
func (s *WriteSession) Prompt() message.Prompt {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return s.ctx.prompt.Copy()
}

// SetPrompt replaces the prompt atomically.
func (s *WriteSession) SetPrompt(p message.Prompt) {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	s.ctx.prompt = p
}

// AppendMessages appends to the prompt history.
func (s *WriteSession) AppendMessages(messages ...message.Message) {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	s.ctx.prompt = s.ctx.prompt.With(messages...)
}

// Tools returns a copy of the active tool descriptors.
func (s *WriteSession) Tools() []tool.Descriptor {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return append([]tool.Descriptor(nil), s.ctx.tools...)
}

// SetTools replaces the active tool list.
func (s *WriteSession) SetTools(tools []tool.Descriptor) {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	s.ctx.tools = append([]tool.Descriptor(nil), tools...)
}

// Model returns the bound model name.
func (s *WriteSession) Model() string {
	s.ctx.dataMu.RLock()
	defer s.ctx.dataMu.RUnlock()
	return s.ctx.model
}

// SetModel rebinds the model.
func (s *WriteSession) SetModel(model string) {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	s.ctx.model = model
}

// RequestLLM issues one complete request. The produced messages are
// appended to the prompt after the executor (and its pipeline proxy, when
// installed) returns, and are also returned to the caller.
func (s *WriteSession) RequestLLM(ctx context.Context) ([]message.Message, error) {
	prompt := s.Prompt()
	responses, err := s.ctx.executor.Execute(ctx, prompt, s.Model(), s.Tools())
	if err != nil {
		return nil, err
	}
	s.AppendMessages(responses...)
	return responses, nil
}

// RequestLLMStreaming issues a streaming request. Frames are yielded as
// they arrive; once the stream completes, the assembled messages are
// appended to the prompt. The stream is restartable only by issuing a new
// request.
func (s *WriteSession) RequestLLMStreaming(ctx context.Context) iter.Seq2[message.StreamFrame, error] {
	prompt := s.Prompt()
	model := s.Model()
	tools := s.Tools()

	return func(yield func(message.StreamFrame, error) bool) {
		var collected []message.StreamFrame
		failed := false

		for frame, err := range s.ctx.executor.ExecuteStreaming(ctx, prompt, model, tools) {
			if err != nil {
				failed = true
				yield(message.StreamFrame{}, err)
				return
			}
			collected = append(collected, frame)
			if !yield(frame, nil) {
				return
			}
		}

		if !failed {
			responses, err := CollectStream(replay(collected), s.ctx.clock)
			if err == nil {
				s.AppendMessages(responses...)
			}
		}
	}
}

// RequestLLMMultipleChoices issues an n-way request and returns the
// alternative response sequences without committing any of them. Use
// SelectChoice (or a choice selection strategy) to make one canonical.
func (s *WriteSession) RequestLLMMultipleChoices(ctx context.Context, n int) ([][]message.Message, error) {
	if n < 1 {
		return nil, fmt.Errorf("number of choices must be >= 1, got %d", n)
	}
	return executeMultiple(ctx, s.ctx.executor, s.Prompt(), s.Model(), s.Tools(), n)
}

// SelectChoice appends the chosen response sequence to the prompt, making
// it the canonical continuation.
func (s *WriteSession) SelectChoice(choice []message.Message) {
	s.AppendMessages(choice...)
}

// WithUpdatedPrompt captures the current prompt, runs fn (which typically
// mutates the prompt and issues a request), and unconditionally restores
// the captured prompt afterwards — on normal return, error and panic alike.
func (s *WriteSession) WithUpdatedPrompt(fn func() error) error {
	original := s.Prompt()
	defer s.SetPrompt(original)
	return fn()
}

func replay(frames []message.StreamFrame) iter.Seq2[message.StreamFrame, error] {
	return func(yield func(message.StreamFrame, error) bool) {
		for _, f := range frames {
			if !yield(f, nil) {
				return
			}
		}
	}
}
