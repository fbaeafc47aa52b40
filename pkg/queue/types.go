// Package queue dispatches analysis jobs to the orchestrator, either via an
// in-process worker pool backed by the durable Job table, or via a
// distributed Redis Streams consumer group when a queue backend is
// configured.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/brightlane/insightforge/ent"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no queued jobs are ready to claim.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent analysis limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// AnalysisExecutor runs one analysis end to end: it owns the entire
// orchestrator invocation and writes every agent's output once the
// orchestrator returns. The worker only handles claiming,
// heartbeat, and the terminal status update.
type AnalysisExecutor interface {
	Execute(ctx context.Context, analysisID string) *ExecutionResult
}

// ExecutionResult is the terminal state of one analysis run. Per-agent
// outputs were already written to the database by the executor before it
// returned — this only carries the aggregate rollup and final status.
type ExecutionResult struct {
	Status         string // completed | failed (a partial failure is completed with PartialFailure set)
	PartialFailure bool
	TotalInputTok  int
	TotalOutputTok int
	TotalTokens    int
	TotalCost      float64
	TotalLatencyMs int64
	Error          error
}

// Backend abstracts the job dequeue source: either the durable Job table
// itself (single-node, Postgres-only) or a distributed Redis Streams
// consumer group. Callers in the worker pool never see which one is active.
type Backend interface {
	// Enqueue publishes a newly created job so the backend's dequeue side
	// can see it. A no-op for the in-process backend, which dequeues
	// straight from the durable table instead.
	Enqueue(ctx context.Context, j *ent.Job) error
	// Claim returns the next job ready to run, or nil if none is available.
	Claim(ctx context.Context, podID string) (*ent.Job, error)
	// Ack marks a claimed job as successfully processed.
	Ack(ctx context.Context, jobID string) error
	// Nack reports that a claimed job's run failed. Neither backend
	// re-queues the job or reads its attempts/max_attempts; a nacked job
	// is not retried.
	Nack(ctx context.Context, jobID string, reason string) error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveAnalyses   int            `json:"active_analyses"`
	MaxConcurrent    int            `json:"max_concurrent"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
	Backend          string         `json:"backend"` // in-process | redis-streams
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"` // idle | working
	CurrentAnalysis  string    `json:"current_analysis,omitempty"`
	AnalysesProcessed int      `json:"analyses_processed"`
	LastActivity     time.Time `json:"last_activity"`
}
