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

// Package graph implements the strategy executor: a deterministic state
// machine that walks a directed node graph from a distinguished start node
// to a finish node, selecting outgoing edges by predicate on the last
// produced value.
//
// Strategies are reentrant and reusable across runs; all per-run mutable
// state lives in the ExecutionContext.
package graph

import (
	"context"
	"fmt"
)

// ExecuteFunc is a node body: it receives the run's execution context and
// the value forwarded by the selected incoming edge.
type ExecuteFunc func(ctx context.Context, ec *ExecutionContext, input any) (any, error)

// ForwardFunc is an edge predicate-transformer: ok=false means the edge
// does not fire; ok=true forwards the returned value to the target node.
type ForwardFunc func(ctx context.Context, ec *ExecutionContext, output any) (any, bool)

// Node is one vertex of a strategy graph. Outgoing edges are evaluated in
// declaration order; the first match wins.
type Node struct {
	ID      string
	Name    string
	Execute ExecuteFunc

	edges []Edge
}

// Edge connects a node to a successor through a forward function.
type Edge struct {
	To      *Node
	Forward ForwardFunc
}

// Edges returns the declared outgoing edges in order.
func (n *Node) Edges() []Edge {
	return n.edges
}

// Strategy is a named, immutable node graph with distinguished start and
// finish nodes. Version participates in checkpoint compatibility checks.
type Strategy struct {
	Name    string
	Version int

	start  *Node
	finish *Node
	nodes  map[string]*Node
	order  []*Node

	Metadata map[string]any
}

// Start returns the entry node.
func (s *Strategy) Start() *Node { return s.start }

// Finish returns the terminal node.
func (s *Strategy) Finish() *Node { return s.finish }

// NodeByID looks up a node.
func (s *Strategy) NodeByID(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Walk visits every node with its outgoing edges: start first, then the
// nodes reachable from it in depth-first edge order, then any unreached
// nodes in insertion order. This is the explicit visitor used by
// diagram generation and validation tooling.
func (s *Strategy) Walk(visit func(n *Node, edges []Edge)) {
	seen := map[string]bool{}
	var order []*Node

	var push func(n *Node)
	push = func(n *Node) {
		if n == nil || seen[n.ID] {
			return
		}
		seen[n.ID] = true
		order = append(order, n)
		for _, e := range n.edges {
			push(e.To)
		}
	}
	push(s.start)
	for _, n := range s.order {
		push(n)
	}

	for _, n := range order {
		visit(n, n.edges)
	}
}

// Builder assembles a Strategy.
type Builder struct {
	name    string
	version int
	nodes   map[string]*Node
	order   []*Node
	start   *Node
	finish  *Node
	errs    []error
}

// NewStrategy opens a builder for a named strategy.
func NewStrategy(name string) *Builder {
	b := &Builder{
		name:    name,
		version: 1,
		nodes:   make(map[string]*Node),
	}
	b.start = b.Node("__start__", "start", func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		return input, nil
	})
	b.finish = b.Node("__finish__", "finish", func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		return input, nil
	})
	return b
}

// Version sets the strategy version used by checkpoint compatibility.
func (b *Builder) Version(v int) *Builder {
	b.version = v
	return b
}

// Node adds a node. IDs must be unique within the strategy.
func (b *Builder) Node(id, name string, execute ExecuteFunc) *Node {
	if _, exists := b.nodes[id]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate node id %q", id))
		return b.nodes[id]
	}
	n := &Node{ID: id, Name: name, Execute: execute}
	b.nodes[id] = n
	b.order = append(b.order, n)
	return n
}

// Start returns the distinguished start node.
func (b *Builder) Start() *Node { return b.start }

// Finish returns the distinguished finish node.
func (b *Builder) Finish() *Node { return b.finish }

// Edge declares an edge from one node to another. Declaration order is
// evaluation order.
func (b *Builder) Edge(from, to *Node, forward ForwardFunc) *Builder {
	if forward == nil {
		forward = ForwardAny
	}
	from.edges = append(from.edges, Edge{To: to, Forward: forward})
	return b
}

// Build validates and returns the strategy.
func (b *Builder) Build() (*Strategy, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.start.edges) == 0 {
		return nil, fmt.Errorf("strategy %q: start node has no outgoing edges", b.name)
	}

	names := make(map[string]string, len(b.nodes))
	for _, n := range b.order {
		if prev, dup := names[n.Name]; dup {
			return nil, fmt.Errorf("strategy %q: node name %q used by %s and %s", b.name, n.Name, prev, n.ID)
		}
		names[n.Name] = n.ID
	}

	return &Strategy{
		Name:     b.name,
		Version:  b.version,
		start:    b.start,
		finish:   b.finish,
		nodes:    b.nodes,
		order:    b.order,
		Metadata: map[string]any{"version": b.version},
	}, nil
}

// ForwardAny forwards every value unchanged: an unconditional edge.
func ForwardAny(ctx context.Context, ec *ExecutionContext, output any) (any, bool) {
	return output, true
}
