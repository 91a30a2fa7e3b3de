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

// Package pipeline is the typed interceptor bus for agent lifecycle events.
//
// Features subscribe handlers per event type; the runtime fires events
// synchronously, in registration order, from the caller's goroutine.
// Handlers must not block for long; features needing slow work hand off to
// their own workers.
package pipeline

import (
	"context"
	"reflect"
	"sync"
)

// Handler is an untyped event handler. Use Subscribe for the typed form.
type Handler func(ctx context.Context, event Event)

// Pipeline fans lifecycle events out to registered handlers and holds the
// typed storage slot of each installed feature.
type Pipeline struct {
	mu       sync.Mutex
	handlers map[reflect.Type][]Handler
	features map[FeatureKey]Feature
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{
		handlers: make(map[reflect.Type][]Handler),
		features: make(map[FeatureKey]Feature),
	}
}

// Subscribe registers a typed handler for events of type E.
func Subscribe[E Event](p *Pipeline, handler func(ctx context.Context, event E)) {
	var zero E
	t := reflect.TypeOf(zero)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[t] = append(p.handlers[t], func(ctx context.Context, event Event) {
		handler(ctx, event.(E))
	})
}

// Fire delivers the event to all handlers registered for its type, in
// registration order, synchronously on the calling goroutine.
func (p *Pipeline) Fire(ctx context.Context, event Event) {
	t := reflect.TypeOf(event)

	p.mu.Lock()
	handlers := append([]Handler(nil), p.handlers[t]...)
	p.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event)
	}
}

// HandlerCount reports the number of handlers for the given event type.
func HandlerCount[E Event](p *Pipeline) int {
	var zero E
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers[reflect.TypeOf(zero)])
}
