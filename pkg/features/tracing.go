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

package features

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tolgaakin/weft/pkg/pipeline"
)

// TracingKey identifies the tracing feature.
const TracingKey pipeline.FeatureKey = "tracing"

const tracerName = "github.com/tolgaakin/weft"

// Tracing opens OpenTelemetry spans around runs, nodes and LLM calls.
type Tracing struct {
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	tracer trace.Tracer
	mu     sync.Mutex
	spans  map[string]trace.Span
}

// Key returns the feature identity.
func (f *Tracing) Key() pipeline.FeatureKey { return TracingKey }

// Install subscribes the span handlers.
func (f *Tracing) Install(p *pipeline.Pipeline) error {
	provider := f.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	f.tracer = provider.Tracer(tracerName)
	f.spans = make(map[string]trace.Span)

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentStarting) {
		f.start(ctx, "agent.run", "run:"+e.Run.RunID(),
			attribute.String("agent.id", e.Run.AgentID()),
			attribute.String("run.id", e.Run.RunID()))
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentCompleted) {
		f.end("run:"+e.Run.RunID(), nil)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) {
		f.end("run:"+e.Run.RunID(), e.Err)
	})

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionStarting) {
		f.start(ctx, "node."+e.Node.Name, nodeKey(e.Run, e.Node),
			attribute.String("run.id", e.Run.RunID()),
			attribute.String("node.id", e.Node.ID))
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionCompleted) {
		f.end(nodeKey(e.Run, e.Node), nil)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionFailed) {
		f.end(nodeKey(e.Run, e.Node), e.Err)
	})

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallStarting) {
		f.start(ctx, "llm.call", "llm:"+e.Run.RunID(),
			attribute.String("run.id", e.Run.RunID()),
			attribute.String("llm.model", e.Model),
			attribute.Int("llm.prompt_messages", len(e.Prompt.Messages)))
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallCompleted) {
		f.end("llm:"+e.Run.RunID(), nil)
	})
	return nil
}

func nodeKey(run pipeline.RunInfo, node pipeline.NodeRef) string {
	return "node:" + run.RunID() + ":" + node.ID
}

func (f *Tracing) start(ctx context.Context, name, key string, attrs ...attribute.KeyValue) {
	_, span := f.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans[key] = span
}

func (f *Tracing) end(key string, err error) {
	f.mu.Lock()
	span, ok := f.spans[key]
	delete(f.spans, key)
	f.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
