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
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	// SQLite driver for durable checkpoint storage.
	_ "github.com/mattn/go-sqlite3"
)

const createCheckpointsTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
    agent_id TEXT NOT NULL,
    checkpoint_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    data_json TEXT NOT NULL,
    PRIMARY KEY (agent_id, checkpoint_id)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_agent ON checkpoints(agent_id, created_at);
`

// SQLProvider stores checkpoints in a SQL database.
type SQLProvider struct {
	db *sql.DB
}

// NewSQLProvider initializes the schema and returns a provider.
func NewSQLProvider(db *sql.DB) (*SQLProvider, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := db.Exec(createCheckpointsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize checkpoints schema: %w", err)
	}
	return &SQLProvider{db: db}, nil
}

// OpenSQLProvider opens (or creates) a SQLite database at path.
func OpenSQLProvider(path string) (*SQLProvider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	provider, err := NewSQLProvider(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return provider, nil
}

// Close releases the database handle.
func (p *SQLProvider) Close() error { return p.db.Close() }

// GetCheckpoints lists an agent's checkpoints oldest first, skipping rows
// that no longer decode.
func (p *SQLProvider) GetCheckpoints(ctx context.Context, agentID string, filter Filter) ([]Data, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT data_json FROM checkpoints WHERE agent_id = ? ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Data
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d Data
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			slog.Warn("Skipping corrupt checkpoint row", "agent_id", agentID, "error", err)
			continue
		}
		if filter == nil || filter(d) {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

// SaveCheckpoint persists one checkpoint row.
func (p *SQLProvider) SaveCheckpoint(ctx context.Context, agentID string, data Data) error {
	if data.CheckpointID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO checkpoints (agent_id, checkpoint_id, created_at, data_json)
VALUES (?, ?, ?, ?)
ON CONFLICT(agent_id, checkpoint_id) DO UPDATE SET
    created_at = excluded.created_at,
    data_json = excluded.data_json`,
		agentID, data.CheckpointID, data.CreatedAt, string(raw))
	if err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

// GetLatestCheckpoint returns the newest matching checkpoint.
func (p *SQLProvider) GetLatestCheckpoint(ctx context.Context, agentID string, filter Filter) (*Data, error) {
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

var _ StorageProvider = (*SQLProvider)(nil)
