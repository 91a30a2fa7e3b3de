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

package features

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/tolgaakin/weft/pkg/pipeline"
)

// DebuggerKey identifies the debugger feature.
const DebuggerKey pipeline.FeatureKey = "debugger"

// DebuggerPortEnvVar overrides the default debugger port.
const DebuggerPortEnvVar = "WEFT_DEBUGGER_PORT"

// DefaultDebuggerPort is used when neither the option nor the env var sets
// a port.
const DefaultDebuggerPort = 11000

// Debugger serves lifecycle events as JSON lines over TCP so external
// tooling can watch a run live.
type Debugger struct {
	// Port to listen on; 0 reads WEFT_DEBUGGER_PORT, falling back to
	// DefaultDebuggerPort.
	Port int

	mu       sync.Mutex
	listener net.Listener
	conns    []net.Conn
}

// NewDebugger creates a debugger with the port resolved from the
// environment.
func NewDebugger() *Debugger {
	port := DefaultDebuggerPort
	if raw := os.Getenv(DebuggerPortEnvVar); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}
	return &Debugger{Port: port}
}

// Key returns the feature identity.
func (f *Debugger) Key() pipeline.FeatureKey { return DebuggerKey }

// Install opens the listener and subscribes the event emitters.
func (f *Debugger) Install(p *pipeline.Pipeline) error {
	if f.Port == 0 {
		f.Port = NewDebugger().Port
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", f.Port))
	if err != nil {
		return fmt.Errorf("debugger failed to listen on port %d: %w", f.Port, err)
	}
	f.listener = listener
	go f.accept()

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentStarting) {
		f.emit("agent_starting", e.Run, map[string]any{"input": fmt.Sprintf("%v", e.Input)})
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentCompleted) {
		f.emit("agent_completed", e.Run, map[string]any{"result": fmt.Sprintf("%v", e.Result)})
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) {
		f.emit("agent_failed", e.Run, map[string]any{"error": e.Err.Error()})
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionStarting) {
		f.emit("node_starting", e.Run, map[string]any{"node": e.Node.Name})
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionCompleted) {
		f.emit("node_completed", e.Run, map[string]any{"node": e.Node.Name})
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallStarting) {
		f.emit("tool_starting", e.Run, map[string]any{"tool": e.Tool, "args": e.Args})
	})
	return nil
}

// Close shuts down the listener and all connections.
func (f *Debugger) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener != nil {
		f.listener.Close()
	}
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

func (f *Debugger) accept() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
	}
}

func (f *Debugger) emit(event string, run pipeline.RunInfo, fields map[string]any) {
	payload := map[string]any{
		"event":    event,
		"agent_id": run.AgentID(),
		"run_id":   run.RunID(),
	}
	for k, v := range fields {
		payload[k] = v
	}
	line, err := json.Marshal(payload)
	if err != nil {
		return
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	alive := f.conns[:0]
	for _, c := range f.conns {
		if _, err := c.Write(line); err != nil {
			slog.Debug("Dropping debugger connection", "error", err)
			c.Close()
			continue
		}
		alive = append(alive, c)
	}
	f.conns = alive
}

// SystemRegistry returns the default constructors for features installable
// through the environment bootstrap.
func SystemRegistry() pipeline.SystemFeatureRegistry {
	return pipeline.SystemFeatureRegistry{
		EventLogKey: func() pipeline.Feature { return &EventLog{} },
		TracingKey:  func() pipeline.Feature { return &Tracing{} },
		MetricsKey:  func() pipeline.Feature { return &Metrics{} },
		DebuggerKey: func() pipeline.Feature { return NewDebugger() },
	}
}
