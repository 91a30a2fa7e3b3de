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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuilderPreservesOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewBuilder("p1", WithClock(fixedClock(now))).
		System("you are helpful").
		User("compute 2+2").
		Assistant("calling tool").
		Tool("eval", `{"expr":"2+2"}`).
		ToolResult("eval", "4", "call-1").
		Build()

	require.Len(t, p.Messages, 5)
	roles := make([]Role, 0, 5)
	for _, m := range p.Messages {
		roles = append(roles, m.Role())
	}
	assert.Equal(t, []Role{RoleSystem, RoleUser, RoleAssistant, RoleToolCall, RoleToolResult}, roles)
}

func TestBuilderDoesNotCoalesceSameRole(t *testing.T) {
	p := NewBuilder("p1").
		User("first").
		User("second").
		Build()

	require.Len(t, p.Messages, 2)
	assert.Equal(t, "first", p.Messages[0].Text())
	assert.Equal(t, "second", p.Messages[1].Text())
}

func TestPromptWithIsValueSemantics(t *testing.T) {
	base := NewPrompt("p", User{Content: "hi"})
	extended := base.With(Assistant{Content: "hello"})

	assert.Len(t, base.Messages, 1)
	assert.Len(t, extended.Messages, 2)
}

func TestParamsValidate(t *testing.T) {
	temp := 2.5
	maxTokens := 0
	choices := 0

	assert.NoError(t, Params{}.Validate())
	assert.Error(t, Params{Temperature: &temp}.Validate())
	assert.Error(t, Params{MaxTokens: &maxTokens}.Validate())
	assert.Error(t, Params{NumberOfChoices: &choices}.Validate())

	okTemp := 0.7
	okMax := 1024
	assert.NoError(t, Params{Temperature: &okTemp, MaxTokens: &okMax}.Validate())
}

func TestMarshalRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	usage := &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	messages := []Message{
		System{Content: "sys", Meta: RequestMeta{Timestamp: now}},
		User{Content: "hi", Attachments: []Attachment{{Kind: AttachmentImage, MimeType: "image/png", URL: "http://x/img.png"}}, Meta: RequestMeta{Timestamp: now}},
		Assistant{Content: "hello", Meta: ResponseMeta{Timestamp: now, Usage: usage, FinishReason: "stop"}},
		Reasoning{Content: "thinking", Meta: ResponseMeta{Timestamp: now}},
		ToolCall{ID: "c1", Tool: "eval", Arguments: `{"expr":"2+2"}`, Meta: ResponseMeta{Timestamp: now, FinishReason: "tool_calls"}},
		ToolResult{ID: "c1", Tool: "eval", Content: "4", Meta: RequestMeta{Timestamp: now}},
	}

	data, err := MarshalMessages(messages)
	require.NoError(t, err)

	decoded, err := UnmarshalMessages(data)
	require.NoError(t, err)
	assert.Equal(t, messages, decoded)
}

func TestUnmarshalUnknownRole(t *testing.T) {
	_, err := UnmarshalMessages([]byte(`[{"role":"oracle","content":"?"}]`))
	assert.Error(t, err)
}

func TestCanonicalStripsMeta(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := Assistant{Content: "same", Meta: ResponseMeta{Timestamp: t1, Usage: &TokenUsage{TotalTokens: 3}, FinishReason: "stop"}}
	b := Assistant{Content: "same", Meta: ResponseMeta{Timestamp: t2, FinishReason: "length"}}

	assert.Equal(t, Canonical(a), Canonical(b))

	u1 := User{Content: "q", Meta: RequestMeta{Timestamp: t1}}
	u2 := User{Content: "q", Meta: RequestMeta{Timestamp: t2}}
	assert.Equal(t, Canonical(u1), Canonical(u2))
}

func TestWithTimestampRewritesResponsesOnly(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := Assistant{Content: "x", Meta: ResponseMeta{Timestamp: t1, FinishReason: "stop"}}
	rewritten := WithTimestamp(a, t2).(Assistant)
	assert.Equal(t, t2, rewritten.Meta.Timestamp)
	assert.Equal(t, "stop", rewritten.Meta.FinishReason)

	u := User{Content: "x", Meta: RequestMeta{Timestamp: t1}}
	assert.Equal(t, Message(u), WithTimestamp(u, t2))
}
