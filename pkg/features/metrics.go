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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tolgaakin/weft/pkg/pipeline"
)

// MetricsKey identifies the metrics feature.
const MetricsKey pipeline.FeatureKey = "metrics"

// Metrics exports run counters to a Prometheus registry.
type Metrics struct {
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	runsTotal  *prometheus.CounterVec
	nodesTotal *prometheus.CounterVec
	llmTotal   *prometheus.CounterVec
	toolsTotal *prometheus.CounterVec
}

// Key returns the feature identity.
func (f *Metrics) Key() pipeline.FeatureKey { return MetricsKey }

// Install registers the collectors and subscribes the counting handlers.
func (f *Metrics) Install(p *pipeline.Pipeline) error {
	reg := f.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_agent_runs_total",
		Help: "Agent runs by outcome.",
	}, []string{"agent_id", "outcome"})
	f.nodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_node_executions_total",
		Help: "Node executions by node name and outcome.",
	}, []string{"node", "outcome"})
	f.llmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_llm_calls_total",
		Help: "LLM calls by model.",
	}, []string{"model"})
	f.toolsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_tool_calls_total",
		Help: "Tool calls by tool and outcome.",
	}, []string{"tool", "outcome"})

	for _, c := range []prometheus.Collector{f.runsTotal, f.nodesTotal, f.llmTotal, f.toolsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentCompleted) {
		f.runsTotal.WithLabelValues(e.Run.AgentID(), "completed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.AgentExecutionFailed) {
		f.runsTotal.WithLabelValues(e.Run.AgentID(), "failed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionCompleted) {
		f.nodesTotal.WithLabelValues(e.Node.Name, "completed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.NodeExecutionFailed) {
		f.nodesTotal.WithLabelValues(e.Node.Name, "failed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.LLMCallCompleted) {
		f.llmTotal.WithLabelValues(e.Model).Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallCompleted) {
		f.toolsTotal.WithLabelValues(e.Tool, "completed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolCallFailed) {
		f.toolsTotal.WithLabelValues(e.Tool, "failed").Inc()
	})
	pipeline.Subscribe(p, func(ctx context.Context, e pipeline.ToolValidationFailed) {
		f.toolsTotal.WithLabelValues(e.Tool, "validation_failed").Inc()
	})
	return nil
}
