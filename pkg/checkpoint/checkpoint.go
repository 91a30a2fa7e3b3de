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

// Package checkpoint captures and restores agent execution points: the
// current node, its input and the message history. Rollback optionally
// compensates external side effects through registered rollback tools.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/tolgaakin/weft/pkg/message"
)

// TombstoneProperty marks a checkpoint that signals "session terminated,
// do not resume".
const TombstoneProperty = "tombstone"

// Data is one execution snapshot.
type Data struct {
	CheckpointID   string
	CreatedAt      time.Time
	NodeID         string
	LastInput      json.RawMessage
	MessageHistory []message.Message
	Version        int
	Properties     map[string]any
}

// IsTombstone reports whether this checkpoint marks a terminated session.
func (d Data) IsTombstone() bool {
	v, ok := d.Properties[TombstoneProperty]
	b, isBool := v.(bool)
	return ok && isBool && b
}

// Tombstone builds a terminated-session marker: empty history, flagged
// properties.
func Tombstone(checkpointID string, createdAt time.Time, version int) Data {
	return Data{
		CheckpointID: checkpointID,
		CreatedAt:    createdAt,
		Version:      version,
		Properties:   map[string]any{TombstoneProperty: true},
	}
}

// dataJSON is the persisted form; MessageHistory needs the role-tagged
// message envelope.
type dataJSON struct {
	CheckpointID   string          `json:"checkpoint_id"`
	CreatedAt      time.Time       `json:"created_at"`
	NodeID         string          `json:"node_id"`
	LastInput      json.RawMessage `json:"last_input,omitempty"`
	MessageHistory json.RawMessage `json:"message_history,omitempty"`
	Version        int             `json:"version"`
	Properties     map[string]any  `json:"properties,omitempty"`
}

// MarshalJSON encodes the checkpoint for persistence.
func (d Data) MarshalJSON() ([]byte, error) {
	history, err := message.MarshalMessages(d.MessageHistory)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataJSON{
		CheckpointID:   d.CheckpointID,
		CreatedAt:      d.CreatedAt,
		NodeID:         d.NodeID,
		LastInput:      d.LastInput,
		MessageHistory: history,
		Version:        d.Version,
		Properties:     d.Properties,
	})
}

// UnmarshalJSON decodes a persisted checkpoint.
func (d *Data) UnmarshalJSON(raw []byte) error {
	var j dataJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return err
	}
	var history []message.Message
	if len(j.MessageHistory) > 0 {
		var err error
		history, err = message.UnmarshalMessages(j.MessageHistory)
		if err != nil {
			return err
		}
	}
	*d = Data{
		CheckpointID:   j.CheckpointID,
		CreatedAt:      j.CreatedAt,
		NodeID:         j.NodeID,
		LastInput:      j.LastInput,
		MessageHistory: history,
		Version:        j.Version,
		Properties:     j.Properties,
	}
	return nil
}

// Filter narrows checkpoint listings. A nil filter matches everything.
type Filter func(Data) bool

// SkipTombstones filters out tombstone checkpoints.
func SkipTombstones() Filter {
	return func(d Data) bool { return !d.IsTombstone() }
}
