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

// Package features ships the pluggable features installed on the agent
// pipeline: persistence, event logging, tracing, metrics and the debugger
// event sink.
package features

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/tolgaakin/weft/pkg/checkpoint"
	"github.com/tolgaakin/weft/pkg/graph"
	"github.com/tolgaakin/weft/pkg/pipeline"
)

// PersistenceKey identifies the persistence feature.
const PersistenceKey pipeline.FeatureKey = "persistence"

// Persistence checkpoints the run as it executes and writes a tombstone on
// terminal failure.
type Persistence struct {
	// Manager persists the checkpoints.
	Manager *checkpoint.Manager

	// EnableAutomaticPersistence checkpoints after node completions.
	EnableAutomaticPersistence bool

	// Interval checkpoints every N node completions; 0 checkpoints after
	// every node.
	Interval int

	completions atomic.Int64
}

// Key returns the feature identity.
func (f *Persistence) Key() pipeline.FeatureKey { return PersistenceKey }

// Install subscribes the checkpoint handlers.
func (f *Persistence) Install(p *pipeline.Pipeline) error {
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionCompleted) {
		if !f.EnableAutomaticPersistence {
			return
		}
		n := f.completions.Add(1)
		if f.Interval > 0 && n%int64(f.Interval) != 0 {
			return
		}
		ec, ok := e.Run.(*graph.ExecutionContext)
		if !ok {
			return
		}
		if _, err := f.Manager.Capture(ctx, ec); err != nil {
			slog.Warn("Failed to save checkpoint",
				"agent_id", e.Run.AgentID(),
				"node", e.Node.ID,
				"error", err)
		}
	})

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) {
		if err := f.Manager.WriteTombstone(ctx, e.Run.AgentID(), e.Run.StrategyVersion()); err != nil {
			slog.Warn("Failed to write tombstone checkpoint",
				"agent_id", e.Run.AgentID(),
				"error", err)
		}
	})
	return nil
}
