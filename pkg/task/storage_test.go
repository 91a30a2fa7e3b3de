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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolgaakin/weft/pkg/a2a"
)

func intPtr(n int) *int { return &n }

func userMessage(text string) a2a.Message {
	return a2a.Message{Role: a2a.MessageRoleUser, Parts: []a2a.Part{a2a.TextPart(text)}}
}

func workingTask(id, contextID string) a2a.Task {
	return a2a.Task{
		ID:        id,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	}
}

func TestUpdateCreatesTask(t *testing.T) {
	s := NewStorage()

	created, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", created.ID)

	got, err := s.Get("t1", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateWorking, got.Status.State)
}

func TestUpdateRejectsContextChange(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)

	_, err = s.Update(workingTask("t1", "c2"))
	require.Error(t, err)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "Cannot change context", opErr.Reason)
}

func TestStatusUpdateRequiresTask(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "ghost",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	assert.Error(t, err)
}

func TestStatusUpdateMovesMessageToHistory(t *testing.T) {
	s := NewStorage()
	working := userMessage("working on it")
	_, err := s.Update(a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking, Message: &working},
	})
	require.NoError(t, err)

	updated, err := s.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	})
	require.NoError(t, err)

	require.Len(t, updated.History, 1)
	assert.Equal(t, "working on it", updated.History[0].Parts[0].Text)
	assert.Equal(t, a2a.TaskStateInputRequired, updated.Status.State)
}

func TestMetadataMergeEventWins(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		Metadata:  map[string]any{"origin": "agent", "attempt": 1},
	})
	require.NoError(t, err)

	updated, err := s.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		Metadata:  map[string]any{"attempt": 2, "note": "retried"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"origin": "agent", "attempt": 2, "note": "retried"}, updated.Metadata)
}

func TestTerminalityRejectsFurtherUpdates(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)

	_, err = s.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
	})
	require.NoError(t, err)

	_, err = s.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	require.Error(t, err)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Contains(t, opErr.Reason, "terminal")
}

func TestArtifactAppendAndReplace(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)

	_, err = s.Update(a2a.TaskArtifactUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Artifact:  a2a.Artifact{ArtifactID: "a1", Parts: []a2a.Part{a2a.TextPart("part 1")}},
	})
	require.NoError(t, err)

	// Append concatenates parts.
	updated, err := s.Update(a2a.TaskArtifactUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Artifact:  a2a.Artifact{ArtifactID: "a1", Parts: []a2a.Part{a2a.TextPart("part 2")}},
		Append:    true,
	})
	require.NoError(t, err)
	require.Len(t, updated.Artifacts, 1)
	assert.Len(t, updated.Artifacts[0].Parts, 2)

	// Replace swaps the artifact wholesale.
	updated, err = s.Update(a2a.TaskArtifactUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Artifact:  a2a.Artifact{ArtifactID: "a1", Parts: []a2a.Part{a2a.TextPart("fresh")}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Artifacts, 1)
	require.Len(t, updated.Artifacts[0].Parts, 1)
	assert.Equal(t, "fresh", updated.Artifacts[0].Parts[0].Text)

	// A new artifact id is appended alongside.
	updated, err = s.Update(a2a.TaskArtifactUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Artifact:  a2a.Artifact{ArtifactID: "a2", Parts: []a2a.Part{a2a.TextPart("other")}},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Artifacts, 2)
}

func TestGetHistoryWindowing(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		History:   []a2a.Message{userMessage("m1"), userMessage("m2"), userMessage("m3")},
	})
	require.NoError(t, err)

	// nil returns all.
	got, err := s.Get("t1", GetOptions{})
	require.NoError(t, err)
	assert.Len(t, got.History, 3)

	// 0 returns empty.
	got, err = s.Get("t1", GetOptions{HistoryLength: intPtr(0)})
	require.NoError(t, err)
	assert.Empty(t, got.History)

	// N returns the last N.
	got, err = s.Get("t1", GetOptions{HistoryLength: intPtr(2)})
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "m2", got.History[0].Parts[0].Text)
	assert.Equal(t, "m3", got.History[1].Parts[0].Text)

	// Negative raises.
	_, err = s.Get("t1", GetOptions{HistoryLength: intPtr(-1)})
	assert.Error(t, err)
}

func TestGetStripsArtifactsByDefault(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		Artifacts: []a2a.Artifact{{ArtifactID: "a1", Parts: []a2a.Part{a2a.TextPart("x")}}},
	})
	require.NoError(t, err)

	got, err := s.Get("t1", GetOptions{})
	require.NoError(t, err)
	assert.Empty(t, got.Artifacts)

	got, err = s.Get("t1", GetOptions{IncludeArtifacts: true})
	require.NoError(t, err)
	assert.Len(t, got.Artifacts, 1)
}

func TestGetByContextAndDelete(t *testing.T) {
	s := NewStorage()
	for _, id := range []string{"t1", "t2"} {
		_, err := s.Update(workingTask(id, "c1"))
		require.NoError(t, err)
	}
	_, err := s.Update(workingTask("t3", "c2"))
	require.NoError(t, err)

	tasks, err := s.GetByContext("c1", GetOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, s.DeleteAll([]string{"t1", "t2"}))
	tasks, err = s.GetByContext("c1", GetOptions{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// Deleting an unknown task fails.
	assert.ErrorIs(t, s.Delete("t1"), ErrTaskNotFound)
}

func TestGetAllBestEffort(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)

	tasks, err := s.GetAll([]string{"t1", "missing"}, GetOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestContextStorageRejectsCrossContextDelete(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(workingTask("t1", "c1"))
	require.NoError(t, err)
	_, err = s.Update(workingTask("t2", "c2"))
	require.NoError(t, err)

	scoped := NewContextStorage("c1", s)
	require.NoError(t, scoped.Delete("t1"))

	err = scoped.Delete("t2")
	require.Error(t, err)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Contains(t, opErr.Reason, "another context")
}

func TestStorageReturnsDetachedCopies(t *testing.T) {
	s := NewStorage()
	_, err := s.Update(a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		History:   []a2a.Message{userMessage("m1")},
	})
	require.NoError(t, err)

	got, err := s.Get("t1", GetOptions{})
	require.NoError(t, err)
	got.History[0].Parts[0].Text = "mutated"

	again, err := s.Get("t1", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "m1", again.History[0].Parts[0].Text)
}

func TestSQLStorageRoundTrip(t *testing.T) {
	store, err := OpenSQLStorage(t.TempDir() + "/tasks.db")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Update(workingTask("t1", "c1"))
	require.NoError(t, err)

	_, err = store.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
	})
	require.NoError(t, err)

	got, err := store.Get("t1", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)

	// Terminal tasks reject further status updates, same as memory.
	_, err = store.Update(a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	assert.Error(t, err)

	tasks, err := store.GetByContext("c1", GetOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, store.Delete("t1"))
	assert.ErrorIs(t, store.Delete("t1"), ErrTaskNotFound)
}
