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

package message

import "time"

// Canonical returns a copy of the message with all meta stripped: request
// timestamps zeroed, response meta (timestamp, usage, finish reason) cleared.
// Two messages that differ only in meta canonicalize to the same value.
// Used by the prompt cache to build fingerprint keys.
func Canonical(m Message) Message {
	switch v := m.(type) {
	case System:
		v.Meta = RequestMeta{}
		return v
	case User:
		v.Meta = RequestMeta{}
		return v
	case Assistant:
		v.Meta = ResponseMeta{}
		return v
	case Reasoning:
		v.Meta = ResponseMeta{}
		return v
	case ToolCall:
		v.Meta = ResponseMeta{}
		return v
	case ToolResult:
		v.Meta = RequestMeta{}
		return v
	default:
		return m
	}
}

// CanonicalPrompt strips meta from every message of the prompt.
func CanonicalPrompt(p Prompt) Prompt {
	messages := make([]Message, len(p.Messages))
	for i, m := range p.Messages {
		messages[i] = Canonical(m)
	}
	p.Messages = messages
	return p
}

// WithTimestamp returns a copy of a response message with its response
// timestamp replaced. Non-response messages are returned unchanged. Used by
// the prompt cache to rewrite hit timestamps to the read time.
func WithTimestamp(m Message, t time.Time) Message {
	switch v := m.(type) {
	case Assistant:
		v.Meta.Timestamp = t
		return v
	case Reasoning:
		v.Meta.Timestamp = t
		return v
	case ToolCall:
		v.Meta.Timestamp = t
		return v
	default:
		return m
	}
}
