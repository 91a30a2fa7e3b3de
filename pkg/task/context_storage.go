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
	"errors"

	"github.com/tolgaakin/weft/pkg/a2a"
)

// ContextStorage scopes a Storage to one context: reads are filtered to it
// and deletes targeting tasks of other contexts are rejected.
type ContextStorage struct {
	contextID string
	store     *Storage
}

// NewContextStorage wraps store for the given context.
func NewContextStorage(contextID string, store *Storage) *ContextStorage {
	return &ContextStorage{contextID: contextID, store: store}
}

// ContextID returns the bound context.
func (c *ContextStorage) ContextID() string { return c.contextID }

// Get reads a task, requiring it to belong to the bound context.
func (c *ContextStorage) Get(taskID string, opts GetOptions) (*a2a.Task, error) {
	t, err := c.store.Get(taskID, opts)
	if err != nil {
		return nil, err
	}
	if t.ContextID != c.contextID {
		return nil, &OperationError{ID: taskID, Reason: "task belongs to another context"}
	}
	return t, nil
}

// Tasks returns all tasks of the bound context.
func (c *ContextStorage) Tasks(opts GetOptions) ([]*a2a.Task, error) {
	return c.store.GetByContext(c.contextID, opts)
}

// Update applies a task event after validating its context.
func (c *ContextStorage) Update(event a2a.Event) (*a2a.Task, error) {
	if event.EventContextID() != c.contextID {
		return nil, &OperationError{Reason: "event belongs to another context"}
	}
	return c.store.Update(event)
}

// Delete removes a task, rejecting cross-context deletes.
func (c *ContextStorage) Delete(taskID string) error {
	owner, err := c.store.ContextID(taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return err
		}
		return err
	}
	if owner != c.contextID {
		return &OperationError{ID: taskID, Reason: "cannot delete task of another context"}
	}
	return c.store.Delete(taskID)
}

// DeleteAll removes the given tasks, validating each against the context.
func (c *ContextStorage) DeleteAll(ids []string) error {
	for _, id := range ids {
		if err := c.Delete(id); err != nil {
			return err
		}
	}
	return nil
}
