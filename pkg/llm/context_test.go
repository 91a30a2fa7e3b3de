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

package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// scriptedExecutor returns canned responses per call, in order.
type scriptedExecutor struct {
	mu        sync.Mutex
	responses [][]message.Message
	frames    []message.StreamFrame
	err       error
	calls     int
}

func (e *scriptedExecutor) Execute(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) ([]message.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if e.calls >= len(e.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", e.calls)
	}
	out := e.responses[e.calls]
	e.calls++
	return out, nil
}

func (e *scriptedExecutor) ExecuteStreaming(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) iter.Seq2[message.StreamFrame, error] {
	return func(yield func(message.StreamFrame, error) bool) {
		if e.err != nil {
			yield(message.StreamFrame{}, e.err)
			return
		}
		for _, f := range e.frames {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func newTestContext(t *testing.T, executor PromptExecutor, msgs ...message.Message) *Context {
	t.Helper()
	ctx, err := NewContext(Config{
		Prompt:   message.NewPrompt("p", msgs...),
		Model:    "test-model",
		Executor: executor,
		Clock:    FixedClock{Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return ctx
}

func TestRequestLLMAppendsToPrompt(t *testing.T) {
	reply := message.Assistant{Content: "4"}
	executor := &scriptedExecutor{responses: [][]message.Message{{reply}}}
	c := newTestContext(t, executor, message.User{Content: "2+2?"})

	before := func() []message.Message {
		var snapshot []message.Message
		c.WithReadSession(func(s ReadSession) { snapshot = s.Prompt().Messages })
		return snapshot
	}()

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		responses, err := s.RequestLLM(context.Background())
		require.NoError(t, err)
		require.Len(t, responses, 1)
		return nil
	})
	require.NoError(t, err)

	c.WithReadSession(func(s ReadSession) {
		after := s.Prompt().Messages
		// Prompt-history append-only: before is a prefix of after.
		require.Len(t, after, len(before)+1)
		assert.Equal(t, before, after[:len(before)])
		assert.Equal(t, message.Message(reply), after[len(after)-1])
	})
}

func TestWriteSessionExclusive(t *testing.T) {
	executor := &scriptedExecutor{}
	c := newTestContext(t, executor)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestWriteSessionAcquisitionHonorsCancellation(t *testing.T) {
	c := newTestContext(t, &scriptedExecutor{})

	release := make(chan struct{})
	go func() {
		_ = c.WithWriteSession(context.Background(), func(s *WriteSession) error {
			<-release
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.WithWriteSession(ctx, func(s *WriteSession) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestWithUpdatedPromptRestoresOnSuccess(t *testing.T) {
	executor := &scriptedExecutor{responses: [][]message.Message{{message.Assistant{Content: "extracted facts"}}}}
	c := newTestContext(t, executor, message.User{Content: "original"})

	var original message.Prompt
	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		original = s.Prompt()
		return s.WithUpdatedPrompt(func() error {
			s.SetPrompt(message.NewPrompt("scratch", message.User{Content: "summarize history"}))
			_, err := s.RequestLLM(context.Background())
			return err
		})
	})
	require.NoError(t, err)

	c.WithReadSession(func(s ReadSession) {
		assert.Equal(t, original, s.Prompt())
	})
}

func TestWithUpdatedPromptRestoresOnPanic(t *testing.T) {
	c := newTestContext(t, &scriptedExecutor{}, message.User{Content: "original"})

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		original := s.Prompt()

		func() {
			defer func() { recover() }()
			_ = s.WithUpdatedPrompt(func() error {
				s.SetPrompt(message.NewPrompt("scratch"))
				panic("boom")
			})
		}()

		assert.Equal(t, original, s.Prompt())
		return nil
	})
	require.NoError(t, err)
}

func TestWithUpdatedPromptRestoresOnError(t *testing.T) {
	c := newTestContext(t, &scriptedExecutor{}, message.User{Content: "original"})

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		original := s.Prompt()
		rewriteErr := s.WithUpdatedPrompt(func() error {
			s.AppendMessages(message.User{Content: "temporary"})
			return errors.New("request failed")
		})
		assert.Error(t, rewriteErr)
		assert.Equal(t, original, s.Prompt())
		return nil
	})
	require.NoError(t, err)
}

func TestRequestLLMStreamingAssemblesMessages(t *testing.T) {
	executor := &scriptedExecutor{
		frames: []message.StreamFrame{
			message.TextFrame("Hel"),
			message.TextFrame("lo"),
			message.EndFrame("stop", &message.TokenUsage{TotalTokens: 7}),
		},
	}
	c := newTestContext(t, executor, message.User{Content: "hi"})

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		var kinds []message.FrameKind
		for frame, err := range s.RequestLLMStreaming(context.Background()) {
			require.NoError(t, err)
			kinds = append(kinds, frame.Kind)
		}
		assert.Equal(t, []message.FrameKind{message.FrameText, message.FrameText, message.FrameEnd}, kinds)
		return nil
	})
	require.NoError(t, err)

	c.WithReadSession(func(s ReadSession) {
		last := s.Prompt().LastMessage()
		require.NotNil(t, last)
		assistant, ok := last.(message.Assistant)
		require.True(t, ok)
		assert.Equal(t, "Hello", assistant.Content)
		assert.Equal(t, "stop", assistant.Meta.FinishReason)
	})
}

func TestRequestLLMStreamingErrorDoesNotAppend(t *testing.T) {
	executor := &scriptedExecutor{err: errors.New("transport down")}
	c := newTestContext(t, executor, message.User{Content: "hi"})

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		var streamErr error
		for _, err := range s.RequestLLMStreaming(context.Background()) {
			if err != nil {
				streamErr = err
			}
		}
		assert.Error(t, streamErr)
		return nil
	})
	require.NoError(t, err)

	c.WithReadSession(func(s ReadSession) {
		assert.Len(t, s.Prompt().Messages, 1)
	})
}

func TestRequestLLMMultipleChoices(t *testing.T) {
	executor := &scriptedExecutor{responses: [][]message.Message{
		{message.Assistant{Content: "choice a"}},
		{message.Assistant{Content: "choice b"}},
	}}
	c := newTestContext(t, executor, message.User{Content: "pick"})

	err := c.WithWriteSession(context.Background(), func(s *WriteSession) error {
		choices, err := s.RequestLLMMultipleChoices(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, choices, 2)

		// Nothing is committed until a choice is selected.
		assert.Len(t, s.Prompt().Messages, 1)

		idx, err := FirstChoice().Select(context.Background(), choices)
		require.NoError(t, err)
		s.SelectChoice(choices[idx])

		assert.Equal(t, "choice a", s.Prompt().LastMessage().Text())
		return nil
	})
	require.NoError(t, err)
}

func TestCollectStreamMergesToolCallDeltas(t *testing.T) {
	frames := replay([]message.StreamFrame{
		message.ToolCallFrame(message.ToolCallDelta{ID: "c1", Tool: "eval", ArgumentsJSON: `{"expr":`}),
		message.ToolCallFrame(message.ToolCallDelta{ID: "c1", ArgumentsJSON: `"2+2"}`}),
		message.EndFrame("tool_calls", nil),
	})

	messages, err := CollectStream(frames, FixedClock{Time: time.Now()})
	require.NoError(t, err)
	require.Len(t, messages, 1)

	call, ok := messages[0].(message.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "eval", call.Tool)
	assert.Equal(t, `{"expr":"2+2"}`, call.Arguments)
	assert.Equal(t, "tool_calls", call.Meta.FinishReason)
}
