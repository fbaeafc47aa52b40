package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/llmprovider"
	"github.com/brightlane/insightforge/pkg/orchestrator"
	"github.com/brightlane/insightforge/pkg/promptstore"
	"github.com/brightlane/insightforge/pkg/quota"
	"github.com/brightlane/insightforge/pkg/services"
)

// AnalysisRunner wires the agent orchestrator against the durable
// persistence layer: it builds a fresh ExecutionContext per job, runs it
// through a plan-scoped Orchestrator, writes each agent's output once the
// run returns, and folds the run into a terminal ExecutionResult.
//
// Orchestrators are built lazily, one per plan tier, since a plan's
// enabled-agent subset changes the DAG shape; the same provider and prompt
// store back every tier.
type AnalysisRunner struct {
	client      *ent.Client
	analysisSvc *services.AnalysisService
	provider    llmprovider.CompletionProvider
	prompts     *promptstore.Store
	model       string

	mu            sync.Mutex
	orchestrators map[quota.Plan]*orchestrator.Orchestrator
}

// NewAnalysisRunner builds a runner backed by the given provider, prompt
// store, and default model.
func NewAnalysisRunner(client *ent.Client, analysisSvc *services.AnalysisService, provider llmprovider.CompletionProvider, prompts *promptstore.Store, model string) *AnalysisRunner {
	return &AnalysisRunner{
		client:        client,
		analysisSvc:   analysisSvc,
		provider:      provider,
		prompts:       prompts,
		model:         model,
		orchestrators: make(map[quota.Plan]*orchestrator.Orchestrator),
	}
}

// orchestratorFor returns (building and caching on first use) the
// plan-scoped orchestrator for plan, whose agent set is ProductionAgents
// trimmed to the plan's allowed subset with cross-references to excluded
// agents stripped from Dependencies.
func (r *AnalysisRunner) orchestratorFor(plan quota.Plan) (*orchestrator.Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.orchestrators[plan]; ok {
		return o, nil
	}

	limits, ok := quota.LimitsFor(plan)
	if !ok {
		return nil, fmt.Errorf("queue: unknown plan %q", plan)
	}

	specs := filterAgentsForPlan(orchestrator.ProductionAgents(r.model), limits)
	o, err := orchestrator.New(specs, r.provider, r.prompts)
	if err != nil {
		return nil, fmt.Errorf("queue: build orchestrator for plan %q: %w", plan, err)
	}

	r.orchestrators[plan] = o
	return o, nil
}

// filterAgentsForPlan keeps only the agents a plan's limits allow, and
// drops any dependency reference to an agent the plan excludes — a plan
// degrades gracefully to a smaller DAG rather than failing validation.
func filterAgentsForPlan(specs []orchestrator.AgentSpec, limits quota.Limits) []orchestrator.AgentSpec {
	out := make([]orchestrator.AgentSpec, 0, len(specs))
	for _, s := range specs {
		if !limits.AllowsAgent(s.Name) {
			continue
		}
		deps := make([]string, 0, len(s.Dependencies))
		for _, d := range s.Dependencies {
			if limits.AllowsAgent(d) {
				deps = append(deps, d)
			}
		}
		s.Dependencies = deps
		out = append(out, s)
	}
	return out
}

// LayerCount reports the resolved DAG's layer count for a plan tier,
// building (and caching) its orchestrator if this is the first call —
// surfaced on the readiness endpoint.
func (r *AnalysisRunner) LayerCount(plan quota.Plan) (int, error) {
	o, err := r.orchestratorFor(plan)
	if err != nil {
		return 0, err
	}
	return o.LayerCount(), nil
}

// Execute runs one analysis to completion: loads the analysis and its org,
// resolves the plan-scoped orchestrator, drives execution, persists each
// agent's output, and returns the terminal result. The caller (the worker)
// is responsible for claim, heartbeat, and calling
// AnalysisService.CompleteAnalysis with the result.
func (r *AnalysisRunner) Execute(ctx context.Context, analysisID string) *ExecutionResult {
	logger := slog.With("execution_id", analysisID)

	a, err := r.client.Analysis.Get(ctx, analysisID)
	if err != nil {
		logger.Error("execution_failed", "stage", "load_analysis", "error", err)
		return &ExecutionResult{Status: "failed", Error: fmt.Errorf("load analysis: %w", err)}
	}

	logger = logger.With("org_id", a.OrgID)

	org, err := r.client.Organization.Get(ctx, a.OrgID)
	if err != nil {
		logger.Error("execution_failed", "stage", "load_org", "error", err)
		return &ExecutionResult{Status: "failed", Error: fmt.Errorf("load org: %w", err)}
	}

	o, err := r.orchestratorFor(quota.Plan(org.Plan))
	if err != nil {
		logger.Error("execution_failed", "stage", "resolve_orchestrator", "error", err)
		return &ExecutionResult{Status: "failed", Error: err}
	}

	ec := orchestrator.NewExecutionContext(a.ID, a.ProblemDescription, string(a.BusinessType), string(a.Depth), "", o.AgentNames())
	o.Execute(ctx, ec)

	for name, meta := range ec.AllMetadata() {
		if meta.Status == orchestrator.StatusPending {
			continue
		}
		output, _ := ec.Output(name)
		rec := services.AgentOutputRecord{
			OutputText:   output,
			Status:       string(meta.Status),
			InputTokens:  meta.InputTokens,
			OutputTokens: meta.OutputTokens,
			Cost:         meta.Cost,
			ErrorMessage: meta.Error,
		}
		if !meta.StartedAt.IsZero() {
			started := meta.StartedAt
			rec.StartedAt = &started
		}
		if !meta.CompletedAt.IsZero() {
			completed := meta.CompletedAt
			rec.CompletedAt = &completed
			if latency := meta.CompletedAt.Sub(meta.StartedAt); latency > 0 {
				rec.LatencyMs = latency.Milliseconds()
			}
		}
		if err := r.analysisSvc.RecordAgentOutput(ctx, a.ID, name, rec); err != nil {
			logger.Error("execution_failed", "stage", "record_agent_output", "agent_name", name, "error", err)
			return &ExecutionResult{Status: "failed", Error: fmt.Errorf("record agent output for %s: %w", name, err)}
		}
	}

	// A partial failure is stored as completed; PartialFailure carries the
	// distinction.
	status := ec.FinalStatus
	if status == "partial_failure" {
		status = "completed"
	}

	agg := ec.Aggregates()
	result := &ExecutionResult{
		Status:         status,
		PartialFailure: ec.PartialFailure,
		TotalInputTok:  agg.TotalInputTokens,
		TotalOutputTok: agg.TotalOutputTokens,
		TotalTokens:    agg.TotalTokens,
		TotalCost:      agg.TotalCost,
		TotalLatencyMs: agg.LatencyMs,
	}
	if ec.FinalStatus == "failed" {
		result.Error = fmt.Errorf("analysis %s: reviewer did not complete", a.ID)
	}
	return result
}
