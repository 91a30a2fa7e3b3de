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

package agent

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolgaakin/weft/pkg/checkpoint"
	"github.com/tolgaakin/weft/pkg/features"
	"github.com/tolgaakin/weft/pkg/graph"
	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/llm/cache"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/pipeline"
	"github.com/tolgaakin/weft/pkg/tool"
)

type scriptedExecutor struct {
	mu        sync.Mutex
	responses [][]message.Message
	calls     int
}

func (e *scriptedExecutor) Execute(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) ([]message.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls >= len(e.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", e.calls)
	}
	out := e.responses[e.calls]
	e.calls++
	return out, nil
}

func (e *scriptedExecutor) ExecuteStreaming(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) iter.Seq2[message.StreamFrame, error] {
	return func(yield func(message.StreamFrame, error) bool) {}
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// eventRecorder is a feature capturing the agent-level event order.
type eventRecorder struct {
	events []string
}

func (r *eventRecorder) Key() pipeline.FeatureKey { return "event-recorder" }

func (r *eventRecorder) Install(p *pipeline.Pipeline) error {
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentStarting) { r.events = append(r.events, "AgentStarting") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentCompleted) { r.events = append(r.events, "AgentCompleted") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) { r.events = append(r.events, "AgentExecutionFailed") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentClosing) { r.events = append(r.events, "AgentClosing") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.StrategyStarting) { r.events = append(r.events, "StrategyStarting") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.StrategyCompleted) { r.events = append(r.events, "StrategyCompleted") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallStarting) { r.events = append(r.events, "LLMCallStarting") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallCompleted) { r.events = append(r.events, "LLMCallCompleted") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallStarting) { r.events = append(r.events, "ToolCallStarting") })
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallCompleted) { r.events = append(r.events, "ToolCallCompleted") })
	return nil
}

func toolRoundTripStrategy(t *testing.T, registry *tool.Registry) *graph.Strategy {
	t.Helper()
	b := graph.NewStrategy("tool-round-trip")
	llmNode := graph.NodeLLMRequest(b, "llm")
	toolNode := graph.NodeExecuteTool(b, "tool", registry)
	b.Edge(b.Start(), llmNode, nil)
	b.Edge(llmNode, toolNode, graph.ForwardToolCall)
	b.Edge(llmNode, b.Finish(), graph.ForwardAssistantText)
	b.Edge(toolNode, llmNode, func(ctx context.Context, ec *graph.ExecutionContext, out any) (any, bool) {
		return nil, true
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func evalRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry := tool.NewRegistry()
	evalTool, err := tool.NewFunc("eval", "evaluate arithmetic", func(ctx context.Context, args struct {
		Expr string `json:"expr" jsonschema:"required"`
	}) (string, error) {
		return "4", nil
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(evalTool))
	return registry
}

func TestAgentToolRoundTrip(t *testing.T) {
	registry := evalRegistry(t)
	executor := &scriptedExecutor{responses: [][]message.Message{
		{message.ToolCall{ID: "c1", Tool: "eval", Arguments: `{"expr":"2+2"}`}},
		{message.Assistant{Content: "4"}},
	}}
	recorder := &eventRecorder{}

	a, err := New(Config{
		ID:       "calculator",
		Strategy: toolRoundTripStrategy(t, registry),
		Executor: executor,
		Model:    "test-model",
		Tools:    registry,
		Features: []pipeline.Feature{recorder},
	})
	require.NoError(t, err)

	result, err := a.Run(context.Background(), "Compute 2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", result)

	// The event sequence opens and closes the way the lifecycle demands.
	require.GreaterOrEqual(t, len(recorder.events), 4)
	assert.Equal(t, "AgentStarting", recorder.events[0])
	assert.Equal(t, "StrategyStarting", recorder.events[1])
	assert.Contains(t, recorder.events, "LLMCallStarting")
	assert.Contains(t, recorder.events, "LLMCallCompleted")
	assert.Contains(t, recorder.events, "ToolCallStarting")
	assert.Contains(t, recorder.events, "ToolCallCompleted")
	assert.Equal(t, "AgentClosing", recorder.events[len(recorder.events)-1])
	assert.Equal(t, "AgentCompleted", recorder.events[len(recorder.events)-2])

	// LLM call events precede tool call events.
	idxLLM := indexOf(recorder.events, "LLMCallStarting")
	idxTool := indexOf(recorder.events, "ToolCallStarting")
	assert.Less(t, idxLLM, idxTool)
}

func indexOf(events []string, name string) int {
	for i, e := range events {
		if e == name {
			return i
		}
	}
	return -1
}

func TestAgentIterationLimit(t *testing.T) {
	b := graph.NewStrategy("spin")
	n := b.Node("llm", "llm", func(ctx context.Context, ec *graph.ExecutionContext, input any) (any, error) {
		return input, nil
	})
	b.Edge(b.Start(), n, nil)
	b.Edge(n, n, nil)
	s, err := b.Build()
	require.NoError(t, err)

	recorder := &eventRecorder{}
	a, err := New(Config{
		ID:                 "looper",
		Strategy:           s,
		Executor:           &scriptedExecutor{},
		MaxAgentIterations: 3,
		Features:           []pipeline.Feature{recorder},
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "go")
	require.Error(t, err)
	assert.Equal(t, graph.KindIterationLimitExceeded, graph.KindOf(err))

	assert.Contains(t, recorder.events, "AgentExecutionFailed")
	assert.NotContains(t, recorder.events, "AgentCompleted")
}

func TestAgentCancellationFiresClosingThenFailed(t *testing.T) {
	b := graph.NewStrategy("slow")
	n := b.Node("n", "n", func(ctx context.Context, ec *graph.ExecutionContext, input any) (any, error) {
		return input, nil
	})
	b.Edge(b.Start(), n, nil)
	b.Edge(n, n, nil)
	s, err := b.Build()
	require.NoError(t, err)

	recorder := &eventRecorder{}
	a, err := New(Config{
		ID:                 "cancelled",
		Strategy:           s,
		Executor:           &scriptedExecutor{},
		MaxAgentIterations: 100000,
		Features:           []pipeline.Feature{recorder},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx, "go")
	require.Error(t, err)
	assert.Equal(t, graph.KindCancelled, graph.KindOf(err))

	idxClosing := indexOf(recorder.events, "AgentClosing")
	idxFailed := indexOf(recorder.events, "AgentExecutionFailed")
	require.GreaterOrEqual(t, idxClosing, 0)
	require.GreaterOrEqual(t, idxFailed, 0)
	assert.Less(t, idxClosing, idxFailed)
}

func TestAgentPromptCacheShortCircuits(t *testing.T) {
	b := graph.NewStrategy("ask")
	llmNode := graph.NodeLLMRequest(b, "llm")
	b.Edge(b.Start(), llmNode, nil)
	b.Edge(llmNode, b.Finish(), graph.ForwardAssistantText)
	s, err := b.Build()
	require.NoError(t, err)

	executor := &scriptedExecutor{responses: [][]message.Message{
		{message.Assistant{Content: "cached answer"}},
	}}

	clock := llm.FixedClock{Time: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a, err := New(Config{
		ID:          "cached",
		Strategy:    s,
		Executor:    executor,
		PromptCache: cache.NewMemory(clock),
		Clock:       clock,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := a.Run(context.Background(), "same question")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", result)
	}

	// One underlying executor call; the rest were cache hits.
	assert.Equal(t, 1, executor.callCount())
}

func TestAgentPersistenceWritesCheckpoints(t *testing.T) {
	registry := evalRegistry(t)
	executor := &scriptedExecutor{responses: [][]message.Message{
		{message.ToolCall{ID: "c1", Tool: "eval", Arguments: `{"expr":"2+2"}`}},
		{message.Assistant{Content: "4"}},
	}}

	provider := checkpoint.NewMemoryProvider()
	manager := checkpoint.NewManager(provider, nil, llm.SystemClock{})

	a, err := New(Config{
		ID:       "persistent",
		Strategy: toolRoundTripStrategy(t, registry),
		Executor: executor,
		Tools:    registry,
		Features: []pipeline.Feature{
			&features.Persistence{Manager: manager, EnableAutomaticPersistence: true},
		},
	})
	require.NoError(t, err)

	result, err := a.Run(context.Background(), "Compute 2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", result)

	all, err := provider.GetCheckpoints(context.Background(), "persistent", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestAgentSystemFeatureBootstrap(t *testing.T) {
	t.Setenv(pipeline.SystemFeaturesEnvVar, "eventlog, bogus")

	b := graph.NewStrategy("noop")
	n := b.Node("n", "n", func(ctx context.Context, ec *graph.ExecutionContext, input any) (any, error) {
		return input, nil
	})
	b.Edge(b.Start(), n, nil)
	b.Edge(n, b.Finish(), nil)
	s, err := b.Build()
	require.NoError(t, err)

	a, err := New(Config{
		ID:             "bootstrapped",
		Strategy:       s,
		Executor:       &scriptedExecutor{},
		SystemFeatures: features.SystemRegistry(),
	})
	require.NoError(t, err)

	_, ok := a.Pipeline().Installed(features.EventLogKey)
	assert.True(t, ok)
}
