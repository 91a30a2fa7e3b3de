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
	"encoding/json"
	"errors"
	"fmt"
)

// WireType discriminates environment wire messages.
type WireType string

const (
	WireActionMultiple       WireType = "ACTION_MULTIPLE"
	WireObservation          WireType = "OBSERVATION"
	WireObservationsMultiple WireType = "OBSERVATIONS_MULTIPLE"
	WireTermination          WireType = "TERMINATION"
	WireError                WireType = "ERROR"
)

// Transport/envelope violations.
var (
	ErrMalformedMessage      = errors.New("malformed message")
	ErrUnexpectedMessageType = errors.New("unexpected message type")
	ErrUnexpectedServer      = errors.New("unexpected server")
)

// WireMessage is the JSON envelope exchanged with the environment. Every
// message carries the run id; task events additionally carry context and
// task ids.
type WireMessage struct {
	Type      WireType        `json:"type"`
	RunID     string          `json:"runId"`
	ContextID string          `json:"contextId,omitempty"`
	TaskID    string          `json:"taskId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ActionPayload is one tool call sent to the environment.
type ActionPayload struct {
	ID        string `json:"id,omitempty"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
}

// ObservationPayload is one tool result received from the environment.
type ObservationPayload struct {
	ID      string `json:"id,omitempty"`
	Tool    string `json:"tool"`
	Content string `json:"content"`
}

// TerminationPayload ends a run, carrying the final result.
type TerminationPayload struct {
	Result string `json:"result,omitempty"`
}

// ErrorPayload reports an environment-side failure.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewActionMultiple builds an ACTION_MULTIPLE message.
func NewActionMultiple(runID string, actions []ActionPayload) (WireMessage, error) {
	return newWireMessage(WireActionMultiple, runID, actions)
}

// NewObservation builds an OBSERVATION message.
func NewObservation(runID string, observation ObservationPayload) (WireMessage, error) {
	return newWireMessage(WireObservation, runID, observation)
}

// NewObservationsMultiple builds an OBSERVATIONS_MULTIPLE message.
func NewObservationsMultiple(runID string, observations []ObservationPayload) (WireMessage, error) {
	return newWireMessage(WireObservationsMultiple, runID, observations)
}

// NewTermination builds a TERMINATION message.
func NewTermination(runID, result string) (WireMessage, error) {
	return newWireMessage(WireTermination, runID, TerminationPayload{Result: result})
}

// NewErrorMessage builds an ERROR message.
func NewErrorMessage(runID, kind, detail string) (WireMessage, error) {
	return newWireMessage(WireError, runID, ErrorPayload{Kind: kind, Message: detail})
}

func newWireMessage(t WireType, runID string, payload any) (WireMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WireMessage{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return WireMessage{Type: t, RunID: runID, Payload: data}, nil
}

// MarshalWire encodes an envelope for transport.
func MarshalWire(msg WireMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeWireMessage parses and validates an envelope.
func DecodeWireMessage(data []byte) (WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WireMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch msg.Type {
	case WireActionMultiple, WireObservation, WireObservationsMultiple, WireTermination, WireError:
	default:
		return WireMessage{}, fmt.Errorf("%w: %q", ErrUnexpectedMessageType, msg.Type)
	}
	if msg.RunID == "" {
		return WireMessage{}, fmt.Errorf("%w: missing runId", ErrMalformedMessage)
	}
	return msg, nil
}
