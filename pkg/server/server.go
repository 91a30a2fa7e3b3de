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

// Package server exposes the A2A surface over HTTP: task reads, event
// ingestion and an SSE stream of per-session progress.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tolgaakin/weft/pkg/a2a"
	"github.com/tolgaakin/weft/pkg/task"
)

// TaskReader is the read side of a task store.
type TaskReader interface {
	Get(taskID string, opts task.GetOptions) (*a2a.Task, error)
	GetByContext(contextID string, opts task.GetOptions) ([]*a2a.Task, error)
}

// Server serves the A2A HTTP surface.
type Server struct {
	reader TaskReader
	store  a2a.TaskStore

	mu       sync.Mutex
	sessions map[string]*a2a.SessionProcessor
}

// New creates a server over a task store. reader and store are usually the
// same *task.Storage.
func New(reader TaskReader, store a2a.TaskStore) *Server {
	return &Server{
		reader:   reader,
		store:    store,
		sessions: make(map[string]*a2a.SessionProcessor),
	}
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	r.Get("/tasks/{taskID}", s.handleGetTask)
	r.Get("/contexts/{contextID}/tasks", s.handleGetContextTasks)
	r.Post("/contexts/{contextID}/tasks/{taskID}/events", s.handlePostEvent)
	r.Get("/contexts/{contextID}/tasks/{taskID}/stream", s.handleStream)

	return r
}

// Session returns (creating on demand) the processor for a pair. A closed
// session is replaced by a fresh one on the next event POST.
func (s *Server) Session(contextID, taskID string) *a2a.SessionProcessor {
	key := contextID + "/" + taskID

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.sessions[key]; ok && p.IsOpen() {
		return p
	}
	p := a2a.NewSessionProcessor(contextID, taskID, s.store)
	s.sessions[key] = p
	return p
}

// existingSession returns the processor for a pair without creating one.
func (s *Server) existingSession(contextID, taskID string) (*a2a.SessionProcessor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.sessions[contextID+"/"+taskID]
	return p, ok
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	opts, err := readGetOptions(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	t, err := s.reader.Get(chi.URLParam(r, "taskID"), opts)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		httpError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetContextTasks(w http.ResponseWriter, r *http.Request) {
	opts, err := readGetOptions(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	tasks, err := s.reader.GetByContext(chi.URLParam(r, "contextID"), opts)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if tasks == nil {
		tasks = []*a2a.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	event, err := a2a.UnmarshalEvent(body)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	session := s.Session(chi.URLParam(r, "contextID"), chi.URLParam(r, "taskID"))
	if err := session.Send(event); err != nil {
		status := http.StatusConflict
		var invalid *a2a.InvalidEventError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		httpError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	session, ok := s.existingSession(chi.URLParam(r, "contextID"), chi.URLParam(r, "taskID"))
	if !ok {
		session = s.Session(chi.URLParam(r, "contextID"), chi.URLParam(r, "taskID"))
	}
	events := session.Subscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				fmt.Fprint(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := a2a.MarshalEvent(event)
			if err != nil {
				slog.Warn("Failed to encode stream event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func readGetOptions(r *http.Request) (task.GetOptions, error) {
	var opts task.GetOptions
	if raw := r.URL.Query().Get("historyLength"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid historyLength %q", raw)
		}
		opts.HistoryLength = &n
	}
	if raw := r.URL.Query().Get("includeArtifacts"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid includeArtifacts %q", raw)
		}
		opts.IncludeArtifacts = include
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
