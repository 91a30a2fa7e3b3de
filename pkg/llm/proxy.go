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
	"errors"
	"iter"

	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/pipeline"
	"github.com/tolgaakin/weft/pkg/tool"
)

// PipelineExecutor wraps a PromptExecutor, injecting lifecycle events for
// every call and attaching the run identity.
//
// Ordering: Completed fires after the final frame. A streaming error fires
// LLMStreamingFailed exactly once and LLMStreamingCompleted does not; a
// failed non-streaming call fires no LLMCallCompleted and no failure event
// of its own (only ToolValidationFailed for argument validation errors).
type PipelineExecutor struct {
	inner PromptExecutor
	pipe  *pipeline.Pipeline
	run   pipeline.RunInfo
}

// NewPipelineExecutor wraps inner with pipeline event injection.
func NewPipelineExecutor(inner PromptExecutor, pipe *pipeline.Pipeline, run pipeline.RunInfo) *PipelineExecutor {
	return &PipelineExecutor{inner: inner, pipe: pipe, run: run}
}

// Execute fires LLMCallStarting, delegates, then fires LLMCallCompleted.
// Tool argument validation errors additionally surface ToolValidationFailed.
func (p *PipelineExecutor) Execute(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) ([]message.Message, error) {
	p.pipe.Fire(ctx, pipeline.LLMCallStarting{Run: p.run, Prompt: prompt, Model: model, Tools: tools})

	responses, err := p.inner.Execute(ctx, prompt, model, tools)
	if err != nil {
		var validation *tool.ValidationError
		if errors.As(err, &validation) {
			p.pipe.Fire(ctx, pipeline.ToolValidationFailed{Run: p.run, Tool: validation.Tool, Err: err})
		}
		return nil, err
	}

	p.pipe.Fire(ctx, pipeline.LLMCallCompleted{Run: p.run, Prompt: prompt, Model: model, Tools: tools, Responses: responses})
	return responses, nil
}

// ExecuteStreaming fires LLMStreamingStarting, FrameReceived per frame,
// then exactly one of Failed or Completed.
func (p *PipelineExecutor) ExecuteStreaming(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) iter.Seq2[message.StreamFrame, error] {
	return func(yield func(message.StreamFrame, error) bool) {
		p.pipe.Fire(ctx, pipeline.LLMStreamingStarting{Run: p.run, Prompt: prompt, Model: model})

		for frame, err := range p.inner.ExecuteStreaming(ctx, prompt, model, tools) {
			if err != nil {
				p.pipe.Fire(ctx, pipeline.LLMStreamingFailed{Run: p.run, Err: err})
				yield(message.StreamFrame{}, err)
				return
			}
			p.pipe.Fire(ctx, pipeline.LLMStreamingFrameReceived{Run: p.run, Frame: frame})
			if !yield(frame, nil) {
				return
			}
		}

		p.pipe.Fire(ctx, pipeline.LLMStreamingCompleted{Run: p.run, Prompt: prompt, Model: model})
	}
}

// ExecuteMultiple delegates n-way sampling, firing call events around it.
func (p *PipelineExecutor) ExecuteMultiple(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor, n int) ([][]message.Message, error) {
	p.pipe.Fire(ctx, pipeline.LLMCallStarting{Run: p.run, Prompt: prompt, Model: model, Tools: tools})

	choices, err := executeMultiple(ctx, p.inner, prompt, model, tools, n)
	if err != nil {
		return nil, err
	}

	var flattened []message.Message
	for _, choice := range choices {
		flattened = append(flattened, choice...)
	}
	p.pipe.Fire(ctx, pipeline.LLMCallCompleted{Run: p.run, Prompt: prompt, Model: model, Tools: tools, Responses: flattened})
	return choices, nil
}
