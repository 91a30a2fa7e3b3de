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

// Package cache provides the request-fingerprinted prompt cache.
//
// Requests are keyed by the canonical form of (prompt, tools) with all
// timestamps cleared; hits return deep copies whose response timestamps are
// rewritten to the read time. Concurrent misses for the same key coalesce
// into a single underlying executor call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"iter"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tolgaakin/weft/pkg/llm"
	"github.com/tolgaakin/weft/pkg/message"
	"github.com/tolgaakin/weft/pkg/tool"
)

// Key computes the cache key for a (prompt, tools) pair: a base-36 rendering
// of the absolute hash of the canonical serialization. Prompts differing
// only in message timestamps or response meta produce the same key.
func Key(prompt message.Prompt, tools []tool.Descriptor) (string, error) {
	canonical := message.CanonicalPrompt(prompt)

	messagesJSON, err := message.MarshalMessages(canonical.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to serialize prompt for cache key: %w", err)
	}

	payload := struct {
		ID       string           `json:"id"`
		Messages json.RawMessage  `json:"messages"`
		Params   message.Params   `json:"params"`
		Tools    []map[string]any `json:"tools,omitempty"`
	}{
		ID:       canonical.ID,
		Messages: messagesJSON,
		Params:   canonical.Params,
	}
	for _, t := range tools {
		schema := t.ToSchema()
		schema["name"] = t.Name
		schema["description"] = t.Description
		payload.Tools = append(payload.Tools, schema)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request for cache key: %w", err)
	}

	h := fnv.New64a()
	h.Write(data)
	v := int64(h.Sum64())
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36), nil
}

// Memory is a concurrency-safe in-memory prompt cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]message.Message
	group   singleflight.Group
	clock   llm.Clock
}

// NewMemory creates a cache. A nil clock uses the system clock.
func NewMemory(clock llm.Clock) *Memory {
	if clock == nil {
		clock = llm.SystemClock{}
	}
	return &Memory{
		entries: make(map[string][]message.Message),
		clock:   clock,
	}
}

// Get returns the cached responses for the request, deep-copied with
// response timestamps rewritten to now.
func (c *Memory) Get(prompt message.Prompt, tools []tool.Descriptor) ([]message.Message, bool, error) {
	key, err := Key(prompt, tools)
	if err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return c.copyOut(cached), true, nil
}

// Put stores the responses for the request.
func (c *Memory) Put(prompt message.Prompt, tools []tool.Descriptor, responses []message.Message) error {
	key, err := Key(prompt, tools)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[key] = append([]message.Message(nil), responses...)
	c.mu.Unlock()
	return nil
}

// GetOrExecute returns the cached responses or computes them at most once
// per key: concurrent misses coalesce into a single compute call and share
// its result. The bool reports whether the value came from the cache.
func (c *Memory) GetOrExecute(prompt message.Prompt, tools []tool.Descriptor, compute func() ([]message.Message, error)) ([]message.Message, bool, error) {
	key, err := Key(prompt, tools)
	if err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return c.copyOut(cached), true, nil
	}

	type outcome struct {
		responses []message.Message
		fromCache bool
	}
	result, err, _ := c.group.Do(key, func() (any, error) {
		// Double check: a writer may have filled the entry meanwhile.
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return outcome{responses: cached, fromCache: true}, nil
		}

		responses, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = append([]message.Message(nil), responses...)
		c.mu.Unlock()
		return outcome{responses: responses}, nil
	})
	if err != nil {
		return nil, false, err
	}
	o := result.(outcome)
	return c.copyOut(o.responses), o.fromCache, nil
}

// Len reports the number of cached requests.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// copyOut deep-copies cached responses, rewriting response timestamps to
// the current read time. Content is never modified.
func (c *Memory) copyOut(responses []message.Message) []message.Message {
	now := c.clock.Now()
	out := make([]message.Message, len(responses))
	for i, m := range responses {
		out[i] = message.WithTimestamp(cloneUsage(m), now)
	}
	return out
}

// cloneUsage detaches the usage pointer so cached entries cannot be
// mutated through returned copies.
func cloneUsage(m message.Message) message.Message {
	clone := func(meta message.ResponseMeta) message.ResponseMeta {
		if meta.Usage != nil {
			usage := *meta.Usage
			meta.Usage = &usage
		}
		return meta
	}
	switch v := m.(type) {
	case message.Assistant:
		v.Meta = clone(v.Meta)
		return v
	case message.Reasoning:
		v.Meta = clone(v.Meta)
		return v
	case message.ToolCall:
		v.Meta = clone(v.Meta)
		return v
	default:
		return m
	}
}

// Executor wraps a PromptExecutor with the cache. Streaming requests
// bypass the cache.
type Executor struct {
	inner llm.PromptExecutor
	cache *Memory
}

// NewExecutor creates a caching executor.
func NewExecutor(inner llm.PromptExecutor, cache *Memory) *Executor {
	return &Executor{inner: inner, cache: cache}
}

// Execute consults the cache before delegating; misses coalesce per key.
func (e *Executor) Execute(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) ([]message.Message, error) {
	responses, _, err := e.cache.GetOrExecute(prompt, tools, func() ([]message.Message, error) {
		return e.inner.Execute(ctx, prompt, model, tools)
	})
	return responses, err
}

// ExecuteStreaming delegates; frame streams are not cached.
func (e *Executor) ExecuteStreaming(ctx context.Context, prompt message.Prompt, model string, tools []tool.Descriptor) iter.Seq2[message.StreamFrame, error] {
	return e.inner.ExecuteStreaming(ctx, prompt, model, tools)
}
