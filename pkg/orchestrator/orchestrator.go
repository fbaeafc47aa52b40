// Package orchestrator runs a fixed set of agents in dependency order,
// maximizing in-layer parallelism, and folds their outputs into an
// ExecutionContext without ever touching persistence.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brightlane/insightforge/pkg/dag"
	"github.com/brightlane/insightforge/pkg/llmprovider"
	"github.com/brightlane/insightforge/pkg/pricing"
	"github.com/brightlane/insightforge/pkg/promptstore"
)

// depOutputCap bounds how much of a dependency's output is folded into a
// downstream agent's user message.
const depOutputCap = 8000

// Orchestrator executes ProductionAgents (or any caller-supplied set) in
// topological layers against a CompletionProvider.
type Orchestrator struct {
	plan     *dag.Plan
	specs    map[string]AgentSpec
	provider llmprovider.CompletionProvider
	prompts  *promptstore.Store
}

// New validates specs into a layered plan and builds an Orchestrator.
// Validation (missing dependency, cycle) runs once, at construction time,
// never on the hot path.
func New(specs []AgentSpec, provider llmprovider.CompletionProvider, prompts *promptstore.Store) (*Orchestrator, error) {
	graph := make(map[string][]string, len(specs))
	byName := make(map[string]AgentSpec, len(specs))
	for _, s := range specs {
		graph[s.Name] = s.Dependencies
		byName[s.Name] = s
	}

	plan, err := dag.Resolve(graph)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Orchestrator{plan: plan, specs: byName, provider: provider, prompts: prompts}, nil
}

// LayerCount reports how many sequential layers the resolved plan has —
// surfaced on the readiness endpoint as operational detail.
func (o *Orchestrator) LayerCount() int {
	return len(o.plan.Layers)
}

// AgentNames returns every agent name in the resolved plan, flattened, in no
// particular order — used to seed a fresh ExecutionContext.
func (o *Orchestrator) AgentNames() []string {
	names := make([]string, 0, len(o.specs))
	for name := range o.specs {
		names = append(names, name)
	}
	return names
}

// Execute runs every layer of the plan in order, all agents within a layer
// concurrently, and aggregates the final analysis status into ec before
// returning it. It never persists anything; the caller owns that.
func (o *Orchestrator) Execute(ctx context.Context, ec *ExecutionContext) *ExecutionContext {
	logger := slog.With("execution_id", ec.ExecutionID)
	ec.StartedAt = time.Now()

	logger.Info("execution_started", "business_type", ec.BusinessType, "depth", ec.Depth)
	logger.Info("execution_plan", "layers", len(o.plan.Layers), "agents", len(o.specs))

	for i, layer := range o.plan.Layers {
		layerLogger := logger.With("layer", i)
		layerLogger.Info("layer_started", "agents", layer)

		var wg sync.WaitGroup
		for _, name := range layer {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				o.runAgent(ctx, ec, name, logger)
			}(name)
		}
		wg.Wait()

		failed := false
		for _, name := range layer {
			if meta, ok := ec.Metadata(name); ok && meta.Status != StatusCompleted {
				failed = true
				break
			}
		}
		if failed {
			layerLogger.Warn("layer_completed_with_failures")
		} else {
			layerLogger.Info("layer_completed")
		}
	}

	ec.CompletedAt = time.Now()
	ec.FinalStatus, ec.PartialFailure = aggregateStatus(ec, o.AgentNames())

	agg := ec.Aggregates()
	durationMs := ec.CompletedAt.Sub(ec.StartedAt).Milliseconds()
	switch ec.FinalStatus {
	case "completed":
		logger.Info("execution_completed", "duration_ms", durationMs, "tokens", agg.TotalTokens, "cost_usd", agg.TotalCost)
	case "partial_failure":
		logger.Warn("execution_partial_failure", "duration_ms", durationMs, "tokens", agg.TotalTokens, "cost_usd", agg.TotalCost)
	default:
		logger.Error("execution_failed", "duration_ms", durationMs)
	}

	return ec
}

// runAgent executes one agent: builds its prompt, calls the provider bounded
// by its per-call timeout, and records the outcome. A failure here never
// cancels sibling goroutines in the same layer (gather-with-exceptions).
func (o *Orchestrator) runAgent(ctx context.Context, ec *ExecutionContext, name string, execLogger *slog.Logger) {
	logger := execLogger.With("agent_name", name)
	logger.Info("agent_started")

	spec := o.specs[name]
	start := time.Now()
	ec.MarkRunning(name, start)

	systemPrompt, err := o.prompts.Render(spec.TemplateID, promptstore.Variables{
		BusinessType:     ec.BusinessType,
		Depth:            ec.Depth,
		DepthDescription: DepthDescription(ec.Depth),
		Industry:         ec.Industry,
	})
	if err != nil {
		logger.Error("agent_failed", "error", err)
		ec.Record(name, AgentMetadata{
			Status:      StatusFailed,
			StartedAt:   start,
			CompletedAt: time.Now(),
			Error:       fmt.Sprintf("prompt render: %v", err),
		}, "")
		return
	}

	userMessage := o.buildUserMessage(ec, spec)
	deadline := start.Add(spec.PerCallTimeout)

	agentCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	comp, err := o.provider.Complete(agentCtx, systemPrompt, userMessage, spec.Model, spec.MaxTokens, deadline)
	if err != nil {
		if agentCtx.Err() == context.DeadlineExceeded {
			logger.Warn("agent_timeout", "duration_ms", time.Since(start).Milliseconds())
			ec.Record(name, AgentMetadata{
				Status:      StatusTimeout,
				StartedAt:   start,
				CompletedAt: time.Now(),
				Error:       fmt.Sprintf("timeout after %s", spec.PerCallTimeout),
			}, "")
			return
		}
		logger.Error("agent_failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		ec.Record(name, AgentMetadata{
			Status:      StatusFailed,
			StartedAt:   start,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}, "")
		return
	}

	cost, err := pricing.Cost(spec.Model, comp.InputTokens, comp.OutputTokens)
	if err != nil {
		cost = 0
	}

	logger.Info("agent_completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"tokens", comp.InputTokens+comp.OutputTokens,
		"cost_usd", cost,
	)

	ec.Record(name, AgentMetadata{
		Status:       StatusCompleted,
		StartedAt:    start,
		CompletedAt:  time.Now(),
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
		Cost:         cost,
	}, comp.Text)
}

// buildUserMessage folds the problem text and every satisfied dependency's
// output (or an unavailability sentinel) into one prompt.
func (o *Orchestrator) buildUserMessage(ec *ExecutionContext, spec AgentSpec) string {
	var b strings.Builder
	b.WriteString(ec.ProblemText)

	for _, dep := range spec.Dependencies {
		b.WriteString("\n\n")

		meta, ok := ec.Metadata(dep)
		if !ok || meta.Status == StatusFailed || meta.Status == StatusTimeout {
			fmt.Fprintf(&b, "[unavailable: %s failed]", dep)
			continue
		}

		output, _ := ec.Output(dep)
		if len(output) > depOutputCap {
			output = output[:depOutputCap] + "\n[truncated]"
		}
		fmt.Fprintf(&b, "%s output:\n%s", dep, output)
	}

	return b.String()
}

// aggregateStatus applies the rule: completed if every agent completed;
// partial_failure if the reviewer completed but some other agent didn't;
// failed if the reviewer itself never completed.
func aggregateStatus(ec *ExecutionContext, agentNames []string) (status string, partialFailure bool) {
	allCompleted := true
	for _, name := range agentNames {
		meta, ok := ec.Metadata(name)
		if !ok || meta.Status != StatusCompleted {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		return "completed", false
	}

	reviewerMeta, ok := ec.Metadata(reviewerAgentName)
	if ok && reviewerMeta.Status == StatusCompleted {
		return "partial_failure", true
	}
	return "failed", false
}
