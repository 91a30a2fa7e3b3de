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
	"log/slog"

	"github.com/tolgaakin/weft/pkg/pipeline"
)

// EventLogKey identifies the event log feature.
const EventLogKey pipeline.FeatureKey = "eventlog"

// EventLog writes lifecycle events to slog at debug level, with failures
// at warn.
type EventLog struct {
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Key returns the feature identity.
func (f *EventLog) Key() pipeline.FeatureKey { return EventLogKey }

// Install subscribes the logging handlers.
func (f *EventLog) Install(p *pipeline.Pipeline) error {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentStarting) {
		log.Debug("agent starting", "agent_id", e.Run.AgentID(), "run_id", e.Run.RunID())
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentCompleted) {
		log.Debug("agent completed", "agent_id", e.Run.AgentID(), "run_id", e.Run.RunID())
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) {
		log.Warn("agent failed", "agent_id", e.Run.AgentID(), "run_id", e.Run.RunID(), "error", e.Err)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionStarting) {
		log.Debug("node starting", "run_id", e.Run.RunID(), "node", e.Node.Name)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionCompleted) {
		log.Debug("node completed", "run_id", e.Run.RunID(), "node", e.Node.Name)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionFailed) {
		log.Warn("node failed", "run_id", e.Run.RunID(), "node", e.Node.Name, "error", e.Err)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallStarting) {
		log.Debug("llm call starting", "run_id", e.Run.RunID(), "model", e.Model, "messages", len(e.Prompt.Messages))
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallCompleted) {
		log.Debug("llm call completed", "run_id", e.Run.RunID(), "model", e.Model, "responses", len(e.Responses))
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallStarting) {
		log.Debug("tool call starting", "run_id", e.Run.RunID(), "tool", e.Tool)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallCompleted) {
		log.Debug("tool call completed", "run_id", e.Run.RunID(), "tool", e.Tool)
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallFailed) {
		log.Warn("tool call failed", "run_id", e.Run.RunID(), "tool", e.Tool, "error", e.Err)
	})
	return nil
}
