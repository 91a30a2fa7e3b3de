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

package pipeline

import (
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// NodeRef identifies a graph node in events without referencing the graph
// itself; the pipeline is held by the executor, not the other way around.
type NodeRef struct {
	ID   string
	Name string
}

// RunInfo is the run-scoped view handed to event handlers. The graph
// execution context implements it.
type RunInfo interface {
	AgentID() string
	RunID() string
	StrategyName() string
	StrategyVersion() int
	// Messages returns a snapshot of the current prompt history.
	Messages() []message.Message
}

// Event is implemented by every lifecycle event type.
type Event interface {
	event()
}

// Agent lifecycle.

type AgentStarting struct {
	Run   RunInfo
	Input any
}

type AgentCompleted struct {
	Run    RunInfo
	Result any
}

type AgentExecutionFailed struct {
	Run RunInfo
	Err error
}

type AgentClosing struct {
	Run RunInfo
}

// EnvironmentTransforming fires while the run environment is assembled.
// Handlers may mutate Environment in place.
type EnvironmentTransforming struct {
	Run         RunInfo
	Environment map[string]any
}

// Strategy lifecycle.

type StrategyStarting struct {
	Run      RunInfo
	Strategy string
}

type StrategyCompleted struct {
	Run      RunInfo
	Strategy string
	Result   any
	Err      error
}

// Subgraph lifecycle.

type SubgraphExecutionStarting struct {
	Run      RunInfo
	Subgraph string
	Input    any
}

type SubgraphExecutionCompleted struct {
	Run      RunInfo
	Subgraph string
	Input    any
	Output   any
}

type SubgraphExecutionFailed struct {
	Run      RunInfo
	Subgraph string
	Err      error
}

// Node lifecycle.

type NodeExecutionStarting struct {
	Run   RunInfo
	Node  NodeRef
	Input any
}

type NodeExecutionCompleted struct {
	Run    RunInfo
	Node   NodeRef
	Input  any
	Output any
}

type NodeExecutionFailed struct {
	Run  RunInfo
	Node NodeRef
	Err  error
}

// LLM call lifecycle.

type LLMCallStarting struct {
	Run    RunInfo
	Prompt message.Prompt
	Model  string
	Tools  []tool.Descriptor
}

type LLMCallCompleted struct {
	Run       RunInfo
	Prompt    message.Prompt
	Model     string
	Tools     []tool.Descriptor
	Responses []message.Message
}

// LLM streaming lifecycle.

type LLMStreamingStarting struct {
	Run    RunInfo
	Prompt message.Prompt
	Model  string
}

type LLMStreamingFrameReceived struct {
	Run   RunInfo
	Frame message.StreamFrame
}

type LLMStreamingFailed struct {
	Run RunInfo
	Err error
}

type LLMStreamingCompleted struct {
	Run    RunInfo
	Prompt message.Prompt
	Model  string
}

// Tool lifecycle.

type ToolCallStarting struct {
	Run  RunInfo
	Tool string
	Args string
}

type ToolValidationFailed struct {
	Run  RunInfo
	Tool string
	Args string
	Err  error
}

type ToolCallFailed struct {
	Run  RunInfo
	Tool string
	Args string
	Err  error
}

type ToolCallCompleted struct {
	Run    RunInfo
	Tool   string
	Args   string
	Result string
}

func (AgentStarting) event()              {}
func (AgentCompleted) event()             {}
func (AgentExecutionFailed) event()       {}
func (AgentClosing) event()               {}
func (EnvironmentTransforming) event()    {}
func (StrategyStarting) event()           {}
func (StrategyCompleted) event()          {}
func (SubgraphExecutionStarting) event()  {}
func (SubgraphExecutionCompleted) event() {}
func (SubgraphExecutionFailed) event()    {}
func (NodeExecutionStarting) event()      {}
func (NodeExecutionCompleted) event()     {}
func (NodeExecutionFailed) event()        {}
func (LLMCallStarting) event()            {}
func (LLMCallCompleted) event()           {}
func (LLMStreamingStarting) event()       {}
func (LLMStreamingFrameReceived) event()  {}
func (LLMStreamingFailed) event()         {}
func (LLMStreamingCompleted) event()      {}
func (ToolCallStarting) event()           {}
func (ToolValidationFailed) event()       {}
func (ToolCallFailed) event()             {}
func (ToolCallCompleted) event()          {}
