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

package task

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	// SQLite driver for file-backed task persistence.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tolgaakin/weft/pkg/a2a"
)

const createTasksTableSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    context_id TEXT NOT NULL,
    state TEXT NOT NULL,
    task_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_context_id ON tasks(context_id);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
`

// SQLStorage persists tasks in a SQL database with the same update
// semantics as the in-memory Storage. A mutex serializes writers; SQLite
// dislikes concurrent write transactions.
type SQLStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLStorage initializes the schema and returns a store.
func NewSQLStorage(db *sql.DB) (*SQLStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := db.Exec(createTasksTableSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize tasks schema: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

// OpenSQLStorage opens (or creates) a SQLite database at path.
func OpenSQLStorage(path string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := NewSQLStorage(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// Get returns a task shaped by opts.
func (s *SQLStorage) Get(taskID string, opts GetOptions) (*a2a.Task, error) {
	if opts.HistoryLength != nil && *opts.HistoryLength < 0 {
		return nil, fmt.Errorf("history length must be non-negative, got %d", *opts.HistoryLength)
	}
	stored, err := s.load(taskID)
	if err != nil {
		return nil, err
	}
	return shapeTask(stored, opts), nil
}

// GetByContext returns all tasks of a context.
func (s *SQLStorage) GetByContext(contextID string, opts GetOptions) ([]*a2a.Task, error) {
	if opts.HistoryLength != nil && *opts.HistoryLength < 0 {
		return nil, fmt.Errorf("history length must be non-negative, got %d", *opts.HistoryLength)
	}

	rows, err := s.db.Query(`SELECT task_json FROM tasks WHERE context_id = ?`, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []*a2a.Task
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t a2a.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("failed to decode stored task: %w", err)
		}
		out = append(out, shapeTask(&t, opts))
	}
	return out, rows.Err()
}

// Update applies a task event inside the writer lock.
func (s *SQLStorage) Update(event a2a.Event) (*a2a.Task, error) {
	taskEvent, ok := event.(a2a.TaskEvent)
	if !ok {
		return nil, &OperationError{Reason: fmt.Sprintf("event kind %q cannot update task storage", event.EventKind())}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(taskEvent.EventTaskID())
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	updated, err := ApplyEvent(existing, taskEvent)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(`
INSERT INTO tasks (id, context_id, state, task_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    context_id = excluded.context_id,
    state = excluded.state,
    task_json = excluded.task_json,
    updated_at = excluded.updated_at`,
		updated.ID, updated.ContextID, string(updated.Status.State), string(raw), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	return copyTask(updated), nil
}

// Delete removes a task.
func (s *SQLStorage) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *SQLStorage) load(taskID string) (*a2a.Task, error) {
	var raw string
	err := s.db.QueryRow(`SELECT task_json FROM tasks WHERE id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	var t a2a.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("failed to decode stored task: %w", err)
	}
	return &t, nil
}

var _ a2a.TaskStore = (*SQLStorage)(nil)
