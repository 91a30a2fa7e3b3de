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

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolgaakin/weft/pkg/a2a"
	"github.com/tolgaakin/weft/pkg/task"
)

func newTestServer(t *testing.T) (*Server, *task.Storage) {
	t.Helper()
	store := task.NewStorage()
	return New(store, store), store
}

func postEvent(t *testing.T, handler http.Handler, contextID, taskID string, event a2a.Event) *httptest.ResponseRecorder {
	t.Helper()
	body, err := a2a.MarshalEvent(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost,
		"/contexts/"+contextID+"/tasks/"+taskID+"/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPostEventAndGetTask(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	rec := postEvent(t, handler, "c1", "t1", a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/tasks/t1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, a2a.TaskStateWorking, got.Status.State)
}

func TestGetTaskNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks/ghost", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTaskHistoryLengthValidation(t *testing.T) {
	s, store := newTestServer(t)
	_, err := store.Update(a2a.Task{ID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tasks/t1?historyLength=-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetContextTasks(t *testing.T) {
	s, store := newTestServer(t)
	for _, id := range []string{"t1", "t2"} {
		_, err := store.Update(a2a.Task{ID: id, ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/contexts/c1/tasks", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []a2a.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestPostEventValidationFailure(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	// contextId mismatch between URL session and event.
	rec := postEvent(t, handler, "c1", "t1", a2a.Task{
		ID:        "t1",
		ContextID: "c2",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionClosesAfterFinalEvent(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	require.Equal(t, http.StatusAccepted, postEvent(t, handler, "c1", "t1", a2a.Task{
		ID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	}).Code)

	require.Equal(t, http.StatusAccepted, postEvent(t, handler, "c1", "t1", a2a.TaskStatusUpdateEvent{
		TaskID: "t1", ContextID: "c1",
		Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
		Final:  true,
	}).Code)

	// The session is closed; the task stays terminal, so a replacement
	// session rejects the update at the storage layer.
	rec := postEvent(t, handler, "c1", "t1", a2a.TaskStatusUpdateEvent{
		TaskID: "t1", ContextID: "c1",
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
