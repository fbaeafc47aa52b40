package orchestrator

import (
	"sync"
	"time"
)

// AgentStatus is the lifecycle state of one agent invocation within an
// analysis run.
type AgentStatus string

const (
	StatusPending   AgentStatus = "pending"
	StatusRunning   AgentStatus = "running"
	StatusCompleted AgentStatus = "completed"
	StatusTimeout   AgentStatus = "timeout"
	StatusFailed    AgentStatus = "failed"
	StatusSkipped   AgentStatus = "skipped"
)

// AgentMetadata records one agent's execution outcome: timing, token usage,
// cost, and any error.
type AgentMetadata struct {
	Status       AgentStatus
	StartedAt    time.Time
	CompletedAt  time.Time
	InputTokens  int
	OutputTokens int
	Cost         float64
	Error        string
}

// Aggregates summarizes token, cost, and wall-clock totals across every
// agent that has recorded a result so far.
type Aggregates struct {
	TotalInputTokens  int
	TotalOutputTokens int
	TotalTokens       int
	TotalCost         float64
	LatencyMs         int64
}

// ExecutionContext is the in-memory working state of one analysis run. It is
// created fresh per run and owned exclusively by the worker goroutine
// driving that run; Orchestrator.Execute fans agents out across
// goroutines within a single layer, so reads/writes still go through the
// internal mutex, but there is never contention across separate runs or
// across workers.
type ExecutionContext struct {
	ExecutionID  string
	ProblemText  string
	BusinessType string
	Depth        string
	Industry     string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	// FinalStatus and PartialFailure are set by Orchestrator.Execute once
	// every layer has settled; see aggregateStatus.
	FinalStatus    string
	PartialFailure bool

	mu       sync.Mutex
	outputs  map[string]string
	metadata map[string]*AgentMetadata
}

// NewExecutionContext builds a fresh context with every named agent
// initialized to AgentStatus pending.
func NewExecutionContext(executionID, problemText, businessType, depth, industry string, agentNames []string) *ExecutionContext {
	ec := &ExecutionContext{
		ExecutionID:  executionID,
		ProblemText:  problemText,
		BusinessType: businessType,
		Depth:        depth,
		Industry:     industry,
		CreatedAt:    time.Now(),
		outputs:      make(map[string]string, len(agentNames)),
		metadata:     make(map[string]*AgentMetadata, len(agentNames)),
	}
	for _, name := range agentNames {
		ec.metadata[name] = &AgentMetadata{Status: StatusPending}
	}
	return ec
}

// Output reads an agent's recorded output text.
func (c *ExecutionContext) Output(agentName string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.outputs[agentName]
	return text, ok
}

// Metadata reads a copy of an agent's current metadata.
func (c *ExecutionContext) Metadata(agentName string) (AgentMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.metadata[agentName]
	if !ok {
		return AgentMetadata{}, false
	}
	return *m, true
}

// MarkRunning transitions an agent to running and records its start time.
func (c *ExecutionContext) MarkRunning(agentName string, start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[agentName] = &AgentMetadata{Status: StatusRunning, StartedAt: start}
}

// Record atomically writes an agent's final output and metadata. Called
// exactly once per agent, by the goroutine executing that agent.
func (c *ExecutionContext) Record(agentName string, meta AgentMetadata, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[agentName] = &meta
	c.outputs[agentName] = output
}

// Aggregates computes sum-of-tokens, sum-of-cost, and max(end)-min(start)
// across every agent that has started.
func (c *ExecutionContext) Aggregates() Aggregates {
	c.mu.Lock()
	defer c.mu.Unlock()

	var agg Aggregates
	var earliestStart, latestEnd time.Time

	for _, m := range c.metadata {
		agg.TotalInputTokens += m.InputTokens
		agg.TotalOutputTokens += m.OutputTokens
		agg.TotalCost += m.Cost

		if m.StartedAt.IsZero() {
			continue
		}
		if earliestStart.IsZero() || m.StartedAt.Before(earliestStart) {
			earliestStart = m.StartedAt
		}
		if m.CompletedAt.After(latestEnd) {
			latestEnd = m.CompletedAt
		}
	}

	agg.TotalTokens = agg.TotalInputTokens + agg.TotalOutputTokens
	if !earliestStart.IsZero() && !latestEnd.IsZero() && latestEnd.After(earliestStart) {
		agg.LatencyMs = latestEnd.Sub(earliestStart).Milliseconds()
	}
	return agg
}

// AllMetadata returns a snapshot of every agent's metadata, keyed by name.
func (c *ExecutionContext) AllMetadata() map[string]AgentMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]AgentMetadata, len(c.metadata))
	for name, m := range c.metadata {
		out[name] = *m
	}
	return out
}
