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

// Package a2a implements the agent-to-agent (A2A) surface: protocol types,
// the per-session validated event stream and the wire envelopes exchanged
// with the environment.
package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input_required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

// TaskStatus is the current state of a task with an optional status message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the unit of work exchanged over the A2A surface. ContextID is
// immutable once the task is stored.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MessageRole is the author side of an A2A message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// PartType discriminates message parts.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

// Part is one unit of message or artifact content.
type Part struct {
	Type PartType  `json:"type"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
	Data any       `json:"data,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// DataPart builds a structured data part.
func DataPart(data any) Part {
	return Part{Type: PartTypeData, Data: data}
}

// FilePart references or embeds a file.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    []byte `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Message is a conversational A2A message.
type Message struct {
	MessageID string         `json:"messageId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Role      MessageRole    `json:"role"`
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Artifact is a task output. Delta updates either append parts or replace
// the artifact wholesale.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TaskStatusUpdateEvent moves a task to a new status. Final marks the last
// status event of a session.
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent adds or extends a task artifact.
type TaskArtifactUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  Artifact       `json:"artifact"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventKind discriminates session events on the wire.
type EventKind string

const (
	EventKindMessage        EventKind = "message"
	EventKindTask           EventKind = "task"
	EventKindStatusUpdate   EventKind = "status-update"
	EventKindArtifactUpdate EventKind = "artifact-update"
)

// Event is any value that can travel through a session stream.
type Event interface {
	EventKind() EventKind
	EventContextID() string
}

// TaskEvent is an event addressed to a specific task.
type TaskEvent interface {
	Event
	EventTaskID() string
}

func (m Message) EventKind() EventKind   { return EventKindMessage }
func (m Message) EventContextID() string { return m.ContextID }

func (t Task) EventKind() EventKind   { return EventKindTask }
func (t Task) EventContextID() string { return t.ContextID }
func (t Task) EventTaskID() string    { return t.ID }

func (e TaskStatusUpdateEvent) EventKind() EventKind   { return EventKindStatusUpdate }
func (e TaskStatusUpdateEvent) EventContextID() string { return e.ContextID }
func (e TaskStatusUpdateEvent) EventTaskID() string    { return e.TaskID }

func (e TaskArtifactUpdateEvent) EventKind() EventKind   { return EventKindArtifactUpdate }
func (e TaskArtifactUpdateEvent) EventContextID() string { return e.ContextID }
func (e TaskArtifactUpdateEvent) EventTaskID() string    { return e.TaskID }

// MarshalEvent encodes an event with its kind discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Kind    EventKind       `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}{Kind: e.EventKind(), Payload: payload})
}

// UnmarshalEvent decodes an event produced by MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var envelope struct {
		Kind    EventKind       `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Kind {
	case EventKindMessage:
		var m Message
		if err := json.Unmarshal(envelope.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventKindTask:
		var t Task
		if err := json.Unmarshal(envelope.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case EventKindStatusUpdate:
		var e TaskStatusUpdateEvent
		if err := json.Unmarshal(envelope.Payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventKindArtifactUpdate:
		var e TaskArtifactUpdateEvent
		if err := json.Unmarshal(envelope.Payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", envelope.Kind)
	}
}
