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
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrCheckpointNotFound is wrapped by provider reads of unknown ids.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// StorageProvider persists checkpoints per agent.
type StorageProvider interface {
	// GetCheckpoints lists an agent's checkpoints, oldest first, narrowed
	// by the optional filter.
	GetCheckpoints(ctx context.Context, agentID string, filter Filter) ([]Data, error)

	// SaveCheckpoint persists one checkpoint.
	SaveCheckpoint(ctx context.Context, agentID string, data Data) error

	// GetLatestCheckpoint returns the newest checkpoint matching the
	// filter, or nil when the agent has none.
	GetLatestCheckpoint(ctx context.Context, agentID string, filter Filter) (*Data, error)
}

// MemoryProvider is an in-memory StorageProvider.
type MemoryProvider struct {
	mu          sync.RWMutex
	checkpoints map[string][]Data
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{checkpoints: make(map[string][]Data)}
}

// GetCheckpoints lists an agent's checkpoints oldest first.
func (p *MemoryProvider) GetCheckpoints(ctx context.Context, agentID string, filter Filter) ([]Data, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Data
	for _, d := range p.checkpoints[agentID] {
		if filter == nil || filter(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveCheckpoint appends a checkpoint.
func (p *MemoryProvider) SaveCheckpoint(ctx context.Context, agentID string, data Data) error {
	if data.CheckpointID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints[agentID] = append(p.checkpoints[agentID], data)
	return nil
}

// GetLatestCheckpoint returns the newest matching checkpoint.
func (p *MemoryProvider) GetLatestCheckpoint(ctx context.Context, agentID string, filter Filter) (*Data, error) {
	all, err := p.GetCheckpoints(ctx, agentID, filter)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	latest := all[len(all)-1]
	return &latest, nil
}

// GetCheckpoint finds one checkpoint by id.
func GetCheckpoint(ctx context.Context, provider StorageProvider, agentID, checkpointID string) (*Data, error) {
	all, err := provider.GetCheckpoints(ctx, agentID, nil)
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if d.CheckpointID == checkpointID {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, checkpointID)
}
