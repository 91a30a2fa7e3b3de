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

package a2a

import (
	"sync"
)

// TaskStore is the write-through sink of a session. Implemented by
// pkg/task.Storage; Update applies the event and returns the resulting
// task.
type TaskStore interface {
	Update(event Event) (*Task, error)
}

// subscriberBuffer sizes per-subscriber channels. Senders block when a
// subscriber falls this far behind, preserving delivery order.
const subscriberBuffer = 256

// SessionProcessor is the single-writer validated event stream for one
// (contextID, taskID) pair. All sends serialize through one mutex; events
// reach subscribers in the order their writes completed.
type SessionProcessor struct {
	contextID string
	taskID    string
	store     TaskStore

	mu            sync.Mutex
	open          bool
	messageSent   bool
	taskEventSent bool
	subscribers   []chan Event
}

// NewSessionProcessor opens a session bound to a task store. store may be
// nil for sessions that only relay Message events.
func NewSessionProcessor(contextID, taskID string, store TaskStore) *SessionProcessor {
	return &SessionProcessor{
		contextID: contextID,
		taskID:    taskID,
		store:     store,
		open:      true,
	}
}

// ContextID returns the session's context id.
func (p *SessionProcessor) ContextID() string { return p.contextID }

// TaskID returns the session's task id.
func (p *SessionProcessor) TaskID() string { return p.taskID }

// IsOpen reports whether the session accepts events.
func (p *SessionProcessor) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Send validates the event under the session mutex, writes task events
// through to the store, and delivers the event to subscribers. Sessions
// close on a final status update, on any event whose resulting task state
// is terminal, and after a single Message event.
func (p *SessionProcessor) Send(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		if _, isMessage := event.(Message); isMessage && p.messageSent {
			return NewInvalidEvent("Message", "session already delivered its message")
		}
		return ErrSessionNotActive
	}
	if event.EventContextID() != p.contextID {
		return NewInvalidEvent("contextId",
			"event context "+event.EventContextID()+" does not match session context "+p.contextID)
	}

	switch e := event.(type) {
	case Message:
		if p.taskEventSent {
			return NewInvalidEvent("TaskEventSent", "message events are rejected once a task event was sent")
		}
		p.deliverLocked(event)
		p.messageSent = true
		p.closeLocked()
		return nil

	case TaskEvent:
		if e.EventTaskID() != p.taskID {
			return NewInvalidEvent("taskId",
				"event task "+e.EventTaskID()+" does not match session task "+p.taskID)
		}

		var resulting *Task
		if p.store != nil {
			task, err := p.store.Update(event)
			if err != nil {
				return err
			}
			resulting = task
		}
		p.taskEventSent = true
		p.deliverLocked(event)

		if statusUpdate, ok := event.(TaskStatusUpdateEvent); ok && statusUpdate.Final {
			p.closeLocked()
		} else if resulting != nil && resulting.Status.State.IsTerminal() {
			p.closeLocked()
		}
		return nil

	default:
		return NewInvalidEvent("kind", "unknown event kind")
	}
}

// Close terminates the session. Idempotent.
func (p *SessionProcessor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// Subscribe attaches a subscriber. The returned channel delivers events in
// send order and is closed when the session closes: the channel close is
// the synthetic close marker that stops consumers. Subscribers attaching
// after close observe the marker immediately.
func (p *SessionProcessor) Subscribe() <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if !p.open {
		close(ch)
		return ch
	}
	p.subscribers = append(p.subscribers, ch)
	return ch
}

func (p *SessionProcessor) deliverLocked(event Event) {
	for _, ch := range p.subscribers {
		ch <- event
	}
}

func (p *SessionProcessor) closeLocked() {
	if !p.open {
		return
	}
	p.open = false
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
}
