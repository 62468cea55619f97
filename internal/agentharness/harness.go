// Package agentharness runs the ten intelligence agents concurrently with
// per-agent timeout and panic isolation, producing the fan-out's surviving
// signals without letting one agent's failure cancel the others.
package agentharness

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/intelligence"
	"github.com/ajitpratap0/marketoracle/internal/signal"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PerformanceRecorder is the harness's collaborator for recording each
// agent's execution outcome; serialized per agent name by the caller's own
// mutex so two concurrent runs for the same agent never race.
type PerformanceRecorder interface {
	RecordExecution(agentName string, success bool, latency time.Duration)
}

// Result is one agent's fan-out outcome.
type Result struct {
	AgentName string
	Signal    *signal.AgentSignal
	Err       error
	TimedOut  bool
}

// Harness runs every agent in a Registry concurrently, isolating timeouts
// and panics so a single misbehaving agent degrades the run rather than
// aborting it.
type Harness struct {
	Registry   intelligence.Registry
	Timeout    time.Duration
	Recorder   PerformanceRecorder
}

// NewHarness returns a Harness with the given per-agent timeout.
func NewHarness(registry intelligence.Registry, timeout time.Duration, recorder PerformanceRecorder) *Harness {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Harness{Registry: registry, Timeout: timeout, Recorder: recorder}
}

// Run fans every registered agent out against state concurrently. Unlike
// errgroup.WithContext's usual short-circuit-on-first-error behavior, a
// failing agent must not cancel its siblings, so each agent gets its own
// derived context instead of sharing the group's.
func (h *Harness) Run(ctx context.Context, state *graph.GraphState) []Result {
	results := make([]Result, len(h.Registry))
	names := h.Registry.Names()

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		agent := h.Registry[name]
		g.Go(func() error {
			results[i] = h.runOne(ctx, agent, state)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (h *Harness) runOne(ctx context.Context, agent intelligence.Agent, state *graph.GraphState) (result Result) {
	result.AgentName = agent.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("agentharness: %s panicked: %v", agent.Name(), r)
			log.Error().Str("agent", agent.Name()).Interface("panic", r).Msg("agent panic isolated")
		}
		if h.Recorder != nil {
			h.Recorder.RecordExecution(agent.Name(), result.Err == nil && !result.TimedOut, time.Since(start))
		}
	}()

	agentCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	input, err := agent.PrepareInput(agentCtx, state)
	if err != nil {
		result.Err = err
		return result
	}

	raw, err := agent.InvokeLLM(agentCtx, input)
	if err != nil {
		if agentCtx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
		}
		result.Err = err
		return result
	}

	sig, err := agent.PostProcess(agentCtx, input, raw)
	if err != nil {
		result.Err = err
		return result
	}

	result.Signal = sig
	return result
}
