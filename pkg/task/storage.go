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

// Package task stores A2A tasks and applies status and artifact deltas.
//
// The in-memory Storage uses a readers-writer lock: reads are concurrent,
// writers exclusive. A context index serves per-context lookups.
package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tolgaakin/weft/pkg/a2a"
)

// ErrTaskNotFound is wrapped by reads of unknown tasks.
var ErrTaskNotFound = errors.New("task not found")

// OperationError reports a rejected storage update.
type OperationError struct {
	ID     string
	Reason string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("task %q operation failed: %s", e.ID, e.Reason)
}

// GetOptions controls task reads.
type GetOptions struct {
	// HistoryLength limits history to the last N messages. nil returns the
	// full history; 0 returns none; negative is an error.
	HistoryLength *int

	// IncludeArtifacts keeps artifacts on the returned task; when false
	// they are stripped.
	IncludeArtifacts bool
}

// Storage is the RW-locked in-memory task store.
type Storage struct {
	mu        sync.RWMutex
	tasks     map[string]*a2a.Task
	byContext map[string]map[string]struct{}
}

// NewStorage creates an empty store.
func NewStorage() *Storage {
	return &Storage{
		tasks:     make(map[string]*a2a.Task),
		byContext: make(map[string]map[string]struct{}),
	}
}

// Get returns a detached copy of the task shaped by opts.
func (s *Storage) Get(taskID string, opts GetOptions) (*a2a.Task, error) {
	if opts.HistoryLength != nil && *opts.HistoryLength < 0 {
		return nil, fmt.Errorf("history length must be non-negative, got %d", *opts.HistoryLength)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return shapeTask(stored, opts), nil
}

// GetAll returns the tasks that exist among ids, best effort.
func (s *Storage) GetAll(ids []string, opts GetOptions) ([]*a2a.Task, error) {
	if opts.HistoryLength != nil && *opts.HistoryLength < 0 {
		return nil, fmt.Errorf("history length must be non-negative, got %d", *opts.HistoryLength)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*a2a.Task
	for _, id := range ids {
		if stored, ok := s.tasks[id]; ok {
			out = append(out, shapeTask(stored, opts))
		}
	}
	return out, nil
}

// GetByContext returns all tasks of a context via the context index.
func (s *Storage) GetByContext(contextID string, opts GetOptions) ([]*a2a.Task, error) {
	if opts.HistoryLength != nil && *opts.HistoryLength < 0 {
		return nil, fmt.Errorf("history length must be non-negative, got %d", *opts.HistoryLength)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*a2a.Task
	for id := range s.byContext[contextID] {
		if stored, ok := s.tasks[id]; ok {
			out = append(out, shapeTask(stored, opts))
		}
	}
	return out, nil
}

// Update applies a task event: a Task creates or replaces, a status update
// moves the state machine, an artifact update applies the delta. The
// resulting task is returned.
func (s *Storage) Update(event a2a.Event) (*a2a.Task, error) {
	taskEvent, ok := event.(a2a.TaskEvent)
	if !ok {
		return nil, &OperationError{Reason: fmt.Sprintf("event kind %q cannot update task storage", event.EventKind())}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.tasks[taskEvent.EventTaskID()]
	updated, err := ApplyEvent(existing, taskEvent)
	if err != nil {
		return nil, err
	}

	s.tasks[updated.ID] = updated
	index, ok := s.byContext[updated.ContextID]
	if !ok {
		index = make(map[string]struct{})
		s.byContext[updated.ContextID] = index
	}
	index[updated.ID] = struct{}{}

	return copyTask(updated), nil
}

// Delete removes a task from the store and the context index. Index
// entries with empty sets are removed.
func (s *Storage) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(taskID)
}

// DeleteAll removes every id, stopping at the first failure.
func (s *Storage) DeleteAll(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if err := s.deleteLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// ContextID returns the owning context of a task.
func (s *Storage) ContextID(taskID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.tasks[taskID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return stored.ContextID, nil
}

func (s *Storage) deleteLocked(taskID string) error {
	stored, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	delete(s.tasks, taskID)

	if index, ok := s.byContext[stored.ContextID]; ok {
		delete(index, taskID)
		if len(index) == 0 {
			delete(s.byContext, stored.ContextID)
		}
	}
	return nil
}

// ApplyEvent applies one task event to the existing stored task (nil when
// absent) and returns the resulting task. Shared by the memory and SQL
// stores so both enforce identical semantics.
func ApplyEvent(existing *a2a.Task, event a2a.TaskEvent) (*a2a.Task, error) {
	if existing != nil && existing.Status.State.IsTerminal() {
		if _, isReplace := event.(a2a.Task); !isReplace {
			return nil, &OperationError{ID: existing.ID, Reason: fmt.Sprintf("task is in terminal state %s", existing.Status.State)}
		}
	}

	switch e := event.(type) {
	case a2a.Task:
		if existing != nil && existing.ContextID != e.ContextID {
			return nil, &OperationError{ID: e.ID, Reason: "Cannot change context"}
		}
		return copyTask(&e), nil

	case a2a.TaskStatusUpdateEvent:
		if existing == nil {
			return nil, &OperationError{ID: e.TaskID, Reason: "status update for unknown task"}
		}
		if existing.ContextID != e.ContextID {
			return nil, &OperationError{ID: e.TaskID, Reason: "Cannot change context"}
		}

		updated := copyTask(existing)
		// The outgoing status message joins the history before the new
		// status replaces it.
		if updated.Status.Message != nil {
			updated.History = append(updated.History, *updated.Status.Message)
		}
		updated.Status = e.Status
		updated.Metadata = mergeMetadata(updated.Metadata, e.Metadata)
		return updated, nil

	case a2a.TaskArtifactUpdateEvent:
		if existing == nil {
			return nil, &OperationError{ID: e.TaskID, Reason: "artifact update for unknown task"}
		}
		if existing.ContextID != e.ContextID {
			return nil, &OperationError{ID: e.TaskID, Reason: "Cannot change context"}
		}

		updated := copyTask(existing)
		updated.Artifacts = applyArtifactDelta(updated.Artifacts, e.Artifact, e.Append)
		updated.Metadata = mergeMetadata(updated.Metadata, e.Metadata)
		return updated, nil

	default:
		return nil, &OperationError{ID: event.EventTaskID(), Reason: fmt.Sprintf("unknown task event kind %q", event.EventKind())}
	}
}

func applyArtifactDelta(artifacts []a2a.Artifact, delta a2a.Artifact, appendParts bool) []a2a.Artifact {
	for i := range artifacts {
		if artifacts[i].ArtifactID != delta.ArtifactID {
			continue
		}
		if appendParts {
			artifacts[i].Parts = append(artifacts[i].Parts, delta.Parts...)
		} else {
			artifacts[i] = delta
		}
		return artifacts
	}
	return append(artifacts, delta)
}

// mergeMetadata is a shallow union; the event's value wins on conflict.
func mergeMetadata(base, event map[string]any) map[string]any {
	if len(event) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(event))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range event {
		merged[k] = v
	}
	return merged
}

func copyTask(t *a2a.Task) *a2a.Task {
	c := *t
	c.History = append([]a2a.Message(nil), t.History...)
	for i := range c.History {
		c.History[i].Parts = append([]a2a.Part(nil), c.History[i].Parts...)
	}
	if t.Status.Message != nil {
		msg := *t.Status.Message
		msg.Parts = append([]a2a.Part(nil), msg.Parts...)
		c.Status.Message = &msg
	}
	c.Artifacts = make([]a2a.Artifact, len(t.Artifacts))
	for i, a := range t.Artifacts {
		a.Parts = append([]a2a.Part(nil), a.Parts...)
		c.Artifacts[i] = a
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func shapeTask(stored *a2a.Task, opts GetOptions) *a2a.Task {
	out := copyTask(stored)
	if opts.HistoryLength != nil {
		n := *opts.HistoryLength
		if n == 0 {
			out.History = nil
		} else if len(out.History) > n {
			out.History = out.History[len(out.History)-n:]
		}
	}
	if !opts.IncludeArtifacts {
		out.Artifacts = nil
	}
	return out
}

var _ a2a.TaskStore = (*Storage)(nil)
