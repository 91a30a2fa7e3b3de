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

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tolgaakin/weft/pkg/graph"
	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// RollbackStrategy selects what a rollback restores.
type RollbackStrategy string

const (
	// RollbackDefault restores the execution point and the history.
	RollbackDefault RollbackStrategy = "default"

	// RollbackMessageHistoryOnly restores only the prompt history.
	RollbackMessageHistoryOnly RollbackStrategy = "message_history_only"
)

// RollbackToolRegistry maps tool names to the compensating tools invoked
// when their calls are rolled back.
type RollbackToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// NewRollbackToolRegistry creates an empty registry.
func NewRollbackToolRegistry() *RollbackToolRegistry {
	return &RollbackToolRegistry{tools: make(map[string]tool.Tool)}
}

// Register binds a rollback tool to a regular tool's name.
func (r *RollbackToolRegistry) Register(toolName string, rollback tool.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[toolName]; exists {
		return fmt.Errorf("rollback tool for %q already registered", toolName)
	}
	r.tools[toolName] = rollback
	return nil
}

// Get returns the rollback tool for a tool name.
func (r *RollbackToolRegistry) Get(toolName string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[toolName]
	return t, ok
}

// Manager couples a storage provider with an optional rollback registry.
type Manager struct {
	provider StorageProvider
	registry *RollbackToolRegistry
	clock    llm.Clock
}

// NewManager creates a checkpoint manager. registry may be nil when no
// compensation is wanted; a nil clock uses the system clock.
func NewManager(provider StorageProvider, registry *RollbackToolRegistry, clock llm.Clock) *Manager {
	if clock == nil {
		clock = llm.SystemClock{}
	}
	return &Manager{provider: provider, registry: registry, clock: clock}
}

// Provider exposes the underlying storage provider.
func (m *Manager) Provider() StorageProvider { return m.provider }

// Capture snapshots the execution context into a new checkpoint and
// persists it.
func (m *Manager) Capture(ctx context.Context, ec *graph.ExecutionContext) (*Data, error) {
	lastInput, err := json.Marshal(ec.LastInput())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize last input: %w", err)
	}

	data := Data{
		CheckpointID:   uuid.New().String(),
		CreatedAt:      m.clock.Now(),
		NodeID:         ec.CurrentNodeID(),
		LastInput:      lastInput,
		MessageHistory: ec.Messages(),
		Version:        ec.StrategyVersion(),
	}
	if err := m.provider.SaveCheckpoint(ctx, ec.AgentID(), data); err != nil {
		return nil, err
	}
	return &data, nil
}

// WriteTombstone marks the agent's session as terminated and unresumable.
func (m *Manager) WriteTombstone(ctx context.Context, agentID string, version int) error {
	return m.provider.SaveCheckpoint(ctx, agentID, Tombstone(uuid.New().String(), m.clock.Now(), version))
}

// RollbackToCheckpoint restores the context to the named checkpoint. With
// a configured rollback registry, tool calls that the restore removes from
// history are compensated in reverse order with their original arguments.
func (m *Manager) RollbackToCheckpoint(ctx context.Context, ec *graph.ExecutionContext, checkpointID string, strategy RollbackStrategy) error {
	data, err := GetCheckpoint(ctx, m.provider, ec.AgentID(), checkpointID)
	if err != nil {
		return err
	}
	return m.rollback(ctx, ec, *data, strategy)
}

// RollbackToLatestCheckpoint restores the newest non-tombstone checkpoint.
func (m *Manager) RollbackToLatestCheckpoint(ctx context.Context, ec *graph.ExecutionContext, strategy RollbackStrategy) error {
	data, err := m.provider.GetLatestCheckpoint(ctx, ec.AgentID(), SkipTombstones())
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: agent %s has no checkpoints", ErrCheckpointNotFound, ec.AgentID())
	}
	return m.rollback(ctx, ec, *data, strategy)
}

func (m *Manager) rollback(ctx context.Context, ec *graph.ExecutionContext, data Data, strategy RollbackStrategy) error {
	if data.IsTombstone() {
		return fmt.Errorf("checkpoint %s is a tombstone; session is not resumable", data.CheckpointID)
	}
	if data.Version != ec.StrategyVersion() {
		return fmt.Errorf("checkpoint version %d does not match strategy version %d", data.Version, ec.StrategyVersion())
	}

	current := ec.Messages()
	if err := m.compensateRemovedToolCalls(ctx, current, data.MessageHistory); err != nil {
		return err
	}

	if err := ec.LLM().WithWriteSession(ctx, func(s *llm.WriteSession) error {
		s.SetPrompt(s.Prompt().WithMessages(data.MessageHistory))
		return nil
	}); err != nil {
		return err
	}

	if strategy == RollbackDefault {
		var lastInput any
		if len(data.LastInput) > 0 {
			if err := json.Unmarshal(data.LastInput, &lastInput); err != nil {
				return fmt.Errorf("failed to decode checkpoint input: %w", err)
			}
		}
		if !ec.RestorePosition(data.NodeID, lastInput) {
			return fmt.Errorf("cannot restore position: run context is closed")
		}
	}
	return nil
}

// compensateRemovedToolCalls executes registered rollback tools for the
// tool calls present in current history beyond the checkpoint point, in
// reverse order. Any rollback error aborts with a composite failure.
func (m *Manager) compensateRemovedToolCalls(ctx context.Context, current, saved []message.Message) error {
	if m.registry == nil || len(current) <= len(saved) {
		return nil
	}

	removed := current[len(saved):]
	for i := len(removed) - 1; i >= 0; i-- {
		call, ok := removed[i].(message.ToolCall)
		if !ok {
			continue
		}
		rollbackTool, registered := m.registry.Get(call.Tool)
		if !registered {
			continue
		}
		if _, err := rollbackTool.Execute(ctx, call.Arguments); err != nil {
			return errors.Join(
				fmt.Errorf("rollback aborted at tool %q", call.Tool),
				err,
			)
		}
	}
	return nil
}
