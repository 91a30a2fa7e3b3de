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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FileProvider stores each checkpoint as a JSON file under
// <root>/checkpoints/<agentID>/<checkpointID>.
//
// An unparseable file yields no checkpoint at that slot: enumeration skips
// it with a warning and never aborts.
type FileProvider struct {
	root string
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(root string) *FileProvider {
	return &FileProvider{root: root}
}

func (p *FileProvider) agentDir(agentID string) string {
	return filepath.Join(p.root, "checkpoints", agentID)
}

// GetCheckpoints lists an agent's checkpoints oldest first, skipping
// corrupt slots.
func (p *FileProvider) GetCheckpoints(ctx context.Context, agentID string, filter Filter) ([]Data, error) {
	entries, err := os.ReadDir(p.agentDir(agentID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var out []Data
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(p.agentDir(agentID), entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable checkpoint file", "path", path, "error", err)
			continue
		}
		var d Data
		if err := json.Unmarshal(raw, &d); err != nil {
			slog.Warn("Skipping corrupt checkpoint file", "path", path, "error", err)
			continue
		}
		if filter == nil || filter(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveCheckpoint writes one checkpoint file.
func (p *FileProvider) SaveCheckpoint(ctx context.Context, agentID string, data Data) error {
	if data.CheckpointID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	dir := p.agentDir(agentID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	path := filepath.Join(dir, data.CheckpointID)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// GetLatestCheckpoint returns the newest matching checkpoint.
func (p *FileProvider) GetLatestCheckpoint(ctx context.Context, agentID string, filter Filter) (*Data, error) {
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

var _ StorageProvider = (*FileProvider)(nil)
var _ StorageProvider = (*MemoryProvider)(nil)
