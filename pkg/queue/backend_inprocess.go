package queue

import (
	"context"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/services"
)

// InProcessBackend dequeues directly from the durable Job table via
// AnalysisService.ClaimNextJob's SELECT ... FOR UPDATE SKIP LOCKED — no
// separate broker, so Ack/Nack are no-ops: CompleteAnalysis already
// transitioned the job row to its terminal status before either is called.
// This is the single-node fallback used whenever QUEUE_URL is unset.
type InProcessBackend struct {
	analysisSvc *services.AnalysisService
}

// NewInProcessBackend builds a Backend backed by the Job table itself.
func NewInProcessBackend(analysisSvc *services.AnalysisService) *InProcessBackend {
	return &InProcessBackend{analysisSvc: analysisSvc}
}

// Enqueue is a no-op: the job row is already visible to the FOR UPDATE
// SKIP LOCKED scan the moment its transaction commits.
func (b *InProcessBackend) Enqueue(ctx context.Context, j *ent.Job) error {
	return nil
}

// Claim delegates straight to AnalysisService.ClaimNextJob.
func (b *InProcessBackend) Claim(ctx context.Context, podID string) (*ent.Job, error) {
	return b.analysisSvc.ClaimNextJob(ctx, podID)
}

// Ack is a no-op: the job row was already marked done by CompleteAnalysis.
func (b *InProcessBackend) Ack(ctx context.Context, jobID string) error {
	return nil
}

// Nack is a no-op as well: the job is not re-queued and its
// attempts/max_attempts fields are not consulted.
func (b *InProcessBackend) Nack(ctx context.Context, jobID string, reason string) error {
	return nil
}
