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

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/tolgaakin/weft/pkg/pipeline"
)

// Run executes the strategy from its start node with the context's input.
// It fires StrategyStarting/StrategyCompleted and the node lifecycle
// events; Agent* events are the caller's concern.
func Run(ctx context.Context, ec *ExecutionContext, s *Strategy) (any, error) {
	ec.beginStrategy(s.Name, s.Version)
	ec.pipe.Fire(ctx, pipeline.StrategyStarting{Run: ec, Strategy: s.Name})

	result, err := runLoop(ctx, ec, s, s.start, ec.input)
	ec.pipe.Fire(ctx, pipeline.StrategyCompleted{Run: ec, Strategy: s.Name, Result: result, Err: err})
	return result, err
}

// Resume executes the strategy from an arbitrary node, used after a
// checkpoint restore.
func Resume(ctx context.Context, ec *ExecutionContext, s *Strategy, nodeID string, input any) (any, error) {
	node, ok := s.NodeByID(nodeID)
	if !ok {
		return nil, fmt.Errorf("strategy %q has no node %q", s.Name, nodeID)
	}

	ec.beginStrategy(s.Name, s.Version)
	ec.pipe.Fire(ctx, pipeline.StrategyStarting{Run: ec, Strategy: s.Name})

	result, err := runLoop(ctx, ec, s, node, input)
	ec.pipe.Fire(ctx, pipeline.StrategyCompleted{Run: ec, Strategy: s.Name, Result: result, Err: err})
	return result, err
}

// runLoop is the state machine walk shared by Run, Resume and subgraph
// nodes: execute the current node, pick the first matching outgoing edge,
// advance, until the finish node or the iteration limit.
func runLoop(ctx context.Context, ec *ExecutionContext, s *Strategy, current *Node, value any) (any, error) {
	for current != s.finish {
		if err := ctx.Err(); err != nil {
			return nil, NewError(KindCancelled, "run cancelled", err)
		}
		if ec.Iterations() >= ec.config.MaxAgentIterations {
			return nil, NewError(KindIterationLimitExceeded,
				fmt.Sprintf("strategy %q exceeded %d iterations", s.Name, ec.config.MaxAgentIterations), nil)
		}
		if !ec.setPosition(current.ID, value) {
			return nil, NewError(KindCancelled, "run context is closed", nil)
		}

		ref := pipeline.NodeRef{ID: current.ID, Name: current.Name}
		ec.pipe.Fire(ctx, pipeline.NodeExecutionStarting{Run: ec, Node: ref, Input: value})

		out, err := executeNode(ctx, ec, current, value)
		if err != nil {
			ec.pipe.Fire(ctx, pipeline.NodeExecutionFailed{Run: ec, Node: ref, Err: err})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, wrapCancellation(err, current)
			}
			var runErr *Error
			if errors.As(err, &runErr) {
				return nil, err
			}
			return nil, NewError(KindNodeExecutionFailed,
				fmt.Sprintf("node %q failed", current.Name), err)
		}

		ec.pipe.Fire(ctx, pipeline.NodeExecutionCompleted{Run: ec, Node: ref, Input: value, Output: out})

		next, forwarded, matched := selectEdge(ctx, ec, current, out)
		if !matched {
			return nil, NewError(KindNoMatchingEdge,
				fmt.Sprintf("node %q produced output with no matching edge", current.Name), nil)
		}

		value = forwarded
		current = next
		if _, ok := ec.incrementIterations(); !ok {
			return nil, NewError(KindCancelled, "run context is closed", nil)
		}
	}

	return value, nil
}

// executeNode guards node bodies against panics, converting them into node
// failures so a misbehaving node cannot take down the process.
func executeNode(ctx context.Context, ec *ExecutionContext, n *Node, input any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindNodeExecutionFailed, fmt.Sprintf("node %q panicked: %v", n.Name, r), nil)
		}
	}()
	return n.Execute(ctx, ec, input)
}

// selectEdge tries outgoing edges in declaration order; the first edge
// whose forward function matches wins.
func selectEdge(ctx context.Context, ec *ExecutionContext, n *Node, out any) (*Node, any, bool) {
	for _, edge := range n.edges {
		if forwarded, ok := edge.Forward(ctx, ec, out); ok {
			return edge.To, forwarded, true
		}
	}
	return nil, nil, false
}

func wrapCancellation(err error, n *Node) error {
	kind := KindCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return NewError(kind, fmt.Sprintf("node %q interrupted", n.Name), err)
}

// NodeSubgraph wraps an inner strategy as a node of the enclosing graph.
// The inner strategy runs with the enclosing context but its own nested
// subgraph events; inner failures propagate as the node's failure.
func NodeSubgraph(b *Builder, id string, inner *Strategy) *Node {
	return b.Node(id, inner.Name, func(ctx context.Context, ec *ExecutionContext, input any) (any, error) {
		ec.pipe.Fire(ctx, pipeline.SubgraphExecutionStarting{Run: ec, Subgraph: inner.Name, Input: input})

		out, err := runLoop(ctx, ec, inner, inner.start, input)
		if err != nil {
			ec.pipe.Fire(ctx, pipeline.SubgraphExecutionFailed{Run: ec, Subgraph: inner.Name, Err: err})
			return nil, err
		}

		ec.pipe.Fire(ctx, pipeline.SubgraphExecutionCompleted{Run: ec, Subgraph: inner.Name, Input: input, Output: out})
		return out, nil
	})
}
