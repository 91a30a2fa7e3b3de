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
	"sync"

	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/pipeline"
	"github.com/tolgaakin/weft/pkg/storage"
)

// Config bounds a run.
type Config struct {
	// MaxAgentIterations caps node executions per run. Exceeding it is a
	// failure, not a silent stop.
	MaxAgentIterations int
}

// DefaultMaxIterations applies when Config.MaxAgentIterations is zero.
const DefaultMaxIterations = 10

// ExecutionContext is the per-run mutable state: identity, input, the LLM
// context, the scratchpad and the pipeline. It is created for one run and
// closed when the run ends; a closed context rejects further writes.
type ExecutionContext struct {
	agentID string
	runID   string
	input   any
	config  Config

	llm   *llm.Context
	store *storage.Map
	pipe  *pipeline.Pipeline

	strategyName    string
	strategyVersion int

	mu            sync.Mutex
	iterations    int
	active        bool
	currentNodeID string
	lastInput     any
}

// ContextConfig assembles an ExecutionContext.
type ContextConfig struct {
	AgentID string
	RunID   string
	Input   any
	Config  Config
	LLM     *llm.Context
	Storage *storage.Map
	Pipe    *pipeline.Pipeline
}

// NewExecutionContext creates an active run context.
func NewExecutionContext(cfg ContextConfig) *ExecutionContext {
	store := cfg.Storage
	if store == nil {
		store = storage.NewMap()
	}
	pipe := cfg.Pipe
	if pipe == nil {
		pipe = pipeline.New()
	}
	conf := cfg.Config
	if conf.MaxAgentIterations == 0 {
		conf.MaxAgentIterations = DefaultMaxIterations
	}
	return &ExecutionContext{
		agentID: cfg.AgentID,
		runID:   cfg.RunID,
		input:   cfg.Input,
		config:  conf,
		llm:     cfg.LLM,
		store:   store,
		pipe:    pipe,
		active:  true,
	}
}

// AgentID returns the owning agent's id.
func (ec *ExecutionContext) AgentID() string { return ec.agentID }

// RunID returns the run id.
func (ec *ExecutionContext) RunID() string { return ec.runID }

// Input returns the run input.
func (ec *ExecutionContext) Input() any { return ec.input }

// Config returns the run configuration.
func (ec *ExecutionContext) Config() Config { return ec.config }

// LLM returns the run's LLM context.
func (ec *ExecutionContext) LLM() *llm.Context { return ec.llm }

// BindLLM attaches the LLM context after construction. The agent needs the
// execution context to exist first so the executor proxy can carry its run
// identity.
func (ec *ExecutionContext) BindLLM(c *llm.Context) { ec.llm = c }

// Storage returns the run scratchpad.
func (ec *ExecutionContext) Storage() *storage.Map { return ec.store }

// Pipeline returns the feature pipeline.
func (ec *ExecutionContext) Pipeline() *pipeline.Pipeline { return ec.pipe }

// StrategyName reports the executing strategy, empty before the run starts.
func (ec *ExecutionContext) StrategyName() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.strategyName
}

// StrategyVersion reports the executing strategy version.
func (ec *ExecutionContext) StrategyVersion() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.strategyVersion
}

// Messages snapshots the current prompt history for event handlers.
func (ec *ExecutionContext) Messages() []message.Message {
	if ec.llm == nil {
		return nil
	}
	var out []message.Message
	ec.llm.WithReadSession(func(s llm.ReadSession) {
		out = s.Prompt().Messages
	})
	return out
}

// Iterations reports completed node executions.
func (ec *ExecutionContext) Iterations() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.iterations
}

// IsActive reports whether the run is still open.
func (ec *ExecutionContext) IsActive() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.active
}

// CurrentNodeID reports the node being (or last) executed.
func (ec *ExecutionContext) CurrentNodeID() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.currentNodeID
}

// LastInput reports the value forwarded into the current node.
func (ec *ExecutionContext) LastInput() any {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.lastInput
}

// Close freezes the context: iterations stop advancing and position writes
// are rejected. Close is idempotent.
func (ec *ExecutionContext) Close() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.active = false
}

func (ec *ExecutionContext) beginStrategy(name string, version int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.strategyName = name
	ec.strategyVersion = version
}

// setPosition records the current node and its input. Returns false when
// the context is closed.
func (ec *ExecutionContext) setPosition(nodeID string, input any) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.active {
		return false
	}
	ec.currentNodeID = nodeID
	ec.lastInput = input
	return true
}

// RestorePosition moves the run to the given node with the given input,
// used by checkpoint rollback.
func (ec *ExecutionContext) RestorePosition(nodeID string, input any) bool {
	return ec.setPosition(nodeID, input)
}

func (ec *ExecutionContext) incrementIterations() (int, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.active {
		return ec.iterations, false
	}
	ec.iterations++
	return ec.iterations, true
}

var _ pipeline.RunInfo = (*ExecutionContext)(nil)
