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

// Package agent composes a strategy, an LLM executor, tools and features
// into a runnable agent. Each Run builds a fresh single-use execution
// context; runs on independent contexts may proceed in parallel.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tolgaakin/weft/pkg/graph"
	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/llm/cache"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/pipeline"
	"github.com/tolgaakin/weft/pkg/tool"
)

// Config assembles an Agent.
type Config struct {
	// ID identifies the agent across runs and checkpoints.
	ID string

	// Strategy is the graph the agent executes.
	Strategy *graph.Strategy

	// Executor is the provider client boundary.
	Executor llm.PromptExecutor

	// Model is the bound model name.
	Model string

	// BasePrompt seeds each run's prompt (typically a system message).
	BasePrompt message.Prompt

	// Tools are exposed to the model.
	Tools *tool.Registry

	// Features are installed on the pipeline before system bootstrap, so
	// user installations win over environment defaults.
	Features []pipeline.Feature

	// SystemFeatures, with SystemFeatureProperty, drives the environment
	// feature bootstrap. Nil disables it.
	SystemFeatures        pipeline.SystemFeatureRegistry
	SystemFeatureProperty string

	// PromptCache, when set, short-circuits repeated identical requests.
	PromptCache *cache.Memory

	// MaxAgentIterations caps node executions per run.
	MaxAgentIterations int

	// Environment is the base run environment handed to the
	// EnvironmentTransforming hook.
	Environment map[string]any

	// Clock defaults to the system clock.
	Clock llm.Clock
}

// Agent executes a strategy over inputs.
type Agent struct {
	id       string
	strategy *graph.Strategy
	executor llm.PromptExecutor
	model    string
	prompt   message.Prompt
	tools    *tool.Registry
	pipe     *pipeline.Pipeline
	config   graph.Config
	env      map[string]any
	clock    llm.Clock
}

// New builds an agent and prepares its pipeline: user features install
// first, then the system features named by the environment.
func New(cfg Config) (*Agent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("prompt executor is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = llm.SystemClock{}
	}

	executor := cfg.Executor
	if cfg.PromptCache != nil {
		executor = cache.NewExecutor(executor, cfg.PromptCache)
	}

	pipe := pipeline.New()
	for _, f := range cfg.Features {
		if err := pipe.Install(f); err != nil {
			return nil, err
		}
	}
	if cfg.SystemFeatures != nil {
		pipe.InstallSystemFeatures(cfg.SystemFeatures, pipeline.SystemFeatureKeys(cfg.SystemFeatureProperty))
	}

	return &Agent{
		id:       cfg.ID,
		strategy: cfg.Strategy,
		executor: executor,
		model:    cfg.Model,
		prompt:   cfg.BasePrompt.Copy(),
		tools:    cfg.Tools,
		pipe:     pipe,
		config:   graph.Config{MaxAgentIterations: cfg.MaxAgentIterations},
		env:      cfg.Environment,
		clock:    clock,
	}, nil
}

// Pipeline exposes the agent's pipeline, e.g. for feature inspection.
func (a *Agent) Pipeline() *pipeline.Pipeline { return a.pipe }

// Strategy returns the agent's strategy.
func (a *Agent) Strategy() *graph.Strategy { return a.strategy }

// Run executes the strategy over input on a fresh context and returns the
// finish node's value.
func (a *Agent) Run(ctx context.Context, input any) (any, error) {
	ec, err := a.newRunContext(ctx, input)
	if err != nil {
		return nil, err
	}
	a.pipe.Fire(ctx, pipeline.AgentStarting{Run: ec, Input: input})

	result, runErr := graph.Run(ctx, ec, a.strategy)
	return a.finishRun(ctx, ec, result, runErr)
}

// Resume continues a run from a restored checkpoint position. The restore
// itself (history, node, input) is the checkpoint manager's job; Resume
// picks up from the context's current position.
func (a *Agent) Resume(ctx context.Context, ec *graph.ExecutionContext) (any, error) {
	nodeID := ec.CurrentNodeID()
	if nodeID == "" {
		return nil, fmt.Errorf("context has no restored position to resume from")
	}
	a.pipe.Fire(ctx, pipeline.AgentStarting{Run: ec, Input: ec.LastInput()})

	result, runErr := graph.Resume(ctx, ec, a.strategy, nodeID, ec.LastInput())
	return a.finishRun(ctx, ec, result, runErr)
}

// NewRunContext builds a single-use execution context wired to the
// agent's pipeline and executor. Exposed for checkpoint restoration.
func (a *Agent) NewRunContext(ctx context.Context, input any) (*graph.ExecutionContext, error) {
	return a.newRunContext(ctx, input)
}

func (a *Agent) newRunContext(ctx context.Context, input any) (*graph.ExecutionContext, error) {
	environment := make(map[string]any, len(a.env))
	for k, v := range a.env {
		environment[k] = v
	}

	ec := graph.NewExecutionContext(graph.ContextConfig{
		AgentID: a.id,
		RunID:   uuid.New().String(),
		Input:   input,
		Config:  a.config,
		Pipe:    a.pipe,
	})

	// Features may rewrite the environment before the LLM context binds it.
	a.pipe.Fire(ctx, pipeline.EnvironmentTransforming{Run: ec, Environment: environment})

	var descriptors []tool.Descriptor
	if a.tools != nil {
		descriptors = a.tools.Descriptors()
	}

	llmCtx, err := llm.NewContext(llm.Config{
		Prompt:      a.prompt.Copy(),
		Tools:       descriptors,
		Model:       a.model,
		Executor:    llm.NewPipelineExecutor(a.executor, a.pipe, ec),
		Environment: environment,
		Clock:       a.clock,
	})
	if err != nil {
		return nil, err
	}
	ec.BindLLM(llmCtx)
	return ec, nil
}

// finishRun fires the terminal agent events in the order the lifecycle
// demands: Completed before Closing on success; on cancellation Closing
// fires before the failure event and the cancellation is rethrown.
func (a *Agent) finishRun(ctx context.Context, ec *graph.ExecutionContext, result any, runErr error) (any, error) {
	if runErr != nil {
		kind := graph.KindOf(runErr)
		if kind == graph.KindCancelled || kind == graph.KindTimeout || errors.Is(runErr, context.Canceled) {
			ec.Close()
			a.pipe.Fire(ctx, pipeline.AgentClosing{Run: ec})
			a.pipe.Fire(ctx, pipeline.AgentExecutionFailed{Run: ec, Err: runErr})
			return nil, runErr
		}
		a.pipe.Fire(ctx, pipeline.AgentExecutionFailed{Run: ec, Err: runErr})
		ec.Close()
		a.pipe.Fire(ctx, pipeline.AgentClosing{Run: ec})
		return nil, runErr
	}

	a.pipe.Fire(ctx, pipeline.AgentCompleted{Run: ec, Result: result})
	ec.Close()
	a.pipe.Fire(ctx, pipeline.AgentClosing{Run: ec})
	return result, nil
}
