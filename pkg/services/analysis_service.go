package services

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/agentoutput"
	"github.com/brightlane/insightforge/ent/analysis"
	"github.com/brightlane/insightforge/ent/job"
	"github.com/google/uuid"
)

// CreateAnalysisRequest is the input to AnalysisService.CreateAnalysis.
type CreateAnalysisRequest struct {
	OrgID              string
	CreatorUserID      string
	ProblemDescription string
	BusinessType       string
	Depth              string
}

// AnalysisService manages the analysis lifecycle: creation (with its backing
// job row in one transaction — the outbox pattern), status transitions,
// per-agent output recording, and the worker-facing claim/heartbeat/orphan
// operations.
type AnalysisService struct {
	client *ent.Client
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(client *ent.Client) *AnalysisService {
	return &AnalysisService{client: client}
}

// CreateAnalysis inserts the analysis row and its queued job row in one
// transaction, so a crash between the two is impossible — either both exist
// or neither does.
func (s *AnalysisService) CreateAnalysis(httpCtx context.Context, req CreateAnalysisRequest) (*ent.Analysis, error) {
	if req.OrgID == "" {
		return nil, NewValidationError("org_id", "required")
	}
	if req.CreatorUserID == "" {
		return nil, NewValidationError("creator_user_id", "required")
	}
	if len(req.ProblemDescription) < 20 || len(req.ProblemDescription) > 8000 {
		return nil, NewValidationError("problem_description", "must be 20-8000 characters")
	}
	if err := analysis.BusinessTypeValidator(analysis.BusinessType(req.BusinessType)); err != nil {
		return nil, NewValidationError("business_type", "unknown business type")
	}
	depth := req.Depth
	if depth == "" {
		depth = string(analysis.DepthStandard)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	analysisID := uuid.New().String()
	a, err := tx.Analysis.Create().
		SetID(analysisID).
		SetOrgID(req.OrgID).
		SetCreatorUserID(req.CreatorUserID).
		SetProblemDescription(req.ProblemDescription).
		SetBusinessType(analysis.BusinessType(req.BusinessType)).
		SetDepth(analysis.Depth(depth)).
		SetStatus(analysis.StatusPending).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	_, err = tx.Job.Create().
		SetID(uuid.New().String()).
		SetJobType(job.JobTypeRunAnalysis).
		SetAnalysisID(a.ID).
		SetOrgID(req.OrgID).
		SetStatus(job.StatusQueued).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue analysis job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit analysis creation: %w", err)
	}

	return a, nil
}

// GetAnalysis retrieves an analysis scoped to its org, with agent outputs
// loaded.
func (s *AnalysisService) GetAnalysis(ctx context.Context, orgID, analysisID string) (*ent.Analysis, error) {
	a, err := s.client.Analysis.Query().
		Where(analysis.IDEQ(analysisID), analysis.OrgIDEQ(orgID)).
		WithAgentOutputs().
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalysesFilters narrows AnalysisService.ListAnalyses.
type ListAnalysesFilters struct {
	Status string
	Limit  int
	Offset int
}

// ListAnalyses lists an org's analyses newest-first, with pagination.
func (s *AnalysisService) ListAnalyses(ctx context.Context, orgID string, filters ListAnalysesFilters) ([]*ent.Analysis, int, error) {
	query := s.client.Analysis.Query().Where(analysis.OrgIDEQ(orgID))
	if filters.Status != "" {
		query = query.Where(analysis.StatusEQ(analysis.Status(filters.Status)))
	}

	totalCount, err := query.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	results, err := query.
		Limit(limit).
		Offset(offset).
		Order(ent.Desc(analysis.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}

	return results, totalCount, nil
}

// ClaimNextJob atomically claims the oldest queued job via SELECT ... FOR
// UPDATE SKIP LOCKED — the durable job table doubling as the in-process
// queue's backing store when no distributed backend is configured.
func (s *AnalysisService) ClaimNextJob(ctx context.Context, podID string) (*ent.Job, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := tx.Job.Query().
		Where(job.StatusEQ(job.StatusQueued)).
		Order(ent.Asc(job.FieldScheduledAt)).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query queued job: %w", err)
	}

	claimed, err := tx.Job.UpdateOneID(j.ID).
		SetStatus(job.StatusRunning).
		SetPodID(podID).
		SetClaimedAt(time.Now()).
		AddAttempts(1).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

// ClaimJobByID marks a specific job running by id, without the SKIP LOCKED
// dequeue scan — used by the distributed queue backend, where a Redis
// Streams consumer group already guarantees each message is delivered to
// exactly one consumer at a time, so no additional row-level locking is
// needed here.
func (s *AnalysisService) ClaimJobByID(ctx context.Context, jobID, podID string) (*ent.Job, error) {
	claimed, err := s.client.Job.UpdateOneID(jobID).
		Where(job.StatusEQ(job.StatusQueued)).
		SetStatus(job.StatusRunning).
		SetPodID(podID).
		SetClaimedAt(time.Now()).
		AddAttempts(1).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	return claimed, nil
}

// GetJobForAnalysis loads the (sole) job row backing an analysis — used by
// the API layer right after CreateAnalysis to hand the job to a distributed
// queue backend's Enqueue.
func (s *AnalysisService) GetJobForAnalysis(ctx context.Context, analysisID string) (*ent.Job, error) {
	j, err := s.client.Job.Query().
		Where(job.AnalysisIDEQ(analysisID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job for analysis: %w", err)
	}
	return j, nil
}

// MarkAnalysisRunning transitions an analysis to running and stamps
// started_at.
func (s *AnalysisService) MarkAnalysisRunning(ctx context.Context, analysisID, podID string) error {
	err := s.client.Analysis.UpdateOneID(analysisID).
		SetStatus(analysis.StatusRunning).
		SetStartedAt(time.Now()).
		SetPodID(podID).
		SetLastHeartbeatAt(time.Now()).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark analysis running: %w", err)
	}
	return nil
}

// Heartbeat refreshes an analysis' last_heartbeat_at — called periodically
// by the claiming worker while the orchestrator runs.
func (s *AnalysisService) Heartbeat(ctx context.Context, analysisID string) error {
	err := s.client.Analysis.UpdateOneID(analysisID).
		SetLastHeartbeatAt(time.Now()).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

// CompletionResult carries the orchestrator's final aggregates into
// CompleteAnalysis.
type CompletionResult struct {
	Status          string
	PartialFailure  bool
	TotalInputTok   int
	TotalOutputTok  int
	TotalTokens     int
	TotalCost       float64
	TotalLatencyMs  int64
	ErrorMessage    string
}

// CompleteAnalysis finalizes an analysis with the orchestrator's aggregate
// result and marks its job row done or failed.
func (s *AnalysisService) CompleteAnalysis(ctx context.Context, analysisID string, result CompletionResult) error {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	update := tx.Analysis.UpdateOneID(analysisID).
		SetStatus(analysis.Status(result.Status)).
		SetPartialFailure(result.PartialFailure).
		SetCompletedAt(time.Now()).
		SetTotalInputTokens(result.TotalInputTok).
		SetTotalOutputTokens(result.TotalOutputTok).
		SetTotalTokens(result.TotalTokens).
		SetTotalCost(result.TotalCost).
		SetTotalLatencyMs(int(result.TotalLatencyMs))
	if result.ErrorMessage != "" {
		update = update.SetErrorMessage(result.ErrorMessage)
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to complete analysis: %w", err)
	}

	jobStatus := job.StatusDone
	if result.Status == string(analysis.StatusFailed) {
		jobStatus = job.StatusFailed
	}
	if _, err := tx.Job.Update().
		Where(job.AnalysisIDEQ(analysisID)).
		SetStatus(jobStatus).
		Save(ctx); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}
	return nil
}

// RecordAgentOutput upserts one agent's result row for an analysis.
func (s *AnalysisService) RecordAgentOutput(ctx context.Context, analysisID, agentName string, meta AgentOutputRecord) error {
	existing, err := s.client.AgentOutput.Query().
		Where(agentoutput.AnalysisIDEQ(analysisID), agentoutput.AgentNameEQ(agentName)).
		Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return fmt.Errorf("failed to query agent output: %w", err)
	}

	if existing == nil {
		create := s.client.AgentOutput.Create().
			SetID(uuid.New().String()).
			SetAnalysisID(analysisID).
			SetAgentName(agentName).
			SetOutputText(meta.OutputText).
			SetStatus(agentoutput.Status(meta.Status)).
			SetInputTokens(meta.InputTokens).
			SetOutputTokens(meta.OutputTokens).
			SetTotalTokens(meta.InputTokens + meta.OutputTokens).
			SetCost(meta.Cost).
			SetLatencyMs(int(meta.LatencyMs))
		if meta.ErrorMessage != "" {
			create = create.SetErrorMessage(meta.ErrorMessage)
		}
		if meta.StartedAt != nil {
			create = create.SetStartedAt(*meta.StartedAt)
		}
		if meta.CompletedAt != nil {
			create = create.SetCompletedAt(*meta.CompletedAt)
		}
		if _, err := create.Save(ctx); err != nil {
			return fmt.Errorf("failed to create agent output: %w", err)
		}
		return nil
	}

	update := existing.Update().
		SetOutputText(meta.OutputText).
		SetStatus(agentoutput.Status(meta.Status)).
		SetInputTokens(meta.InputTokens).
		SetOutputTokens(meta.OutputTokens).
		SetTotalTokens(meta.InputTokens + meta.OutputTokens).
		SetCost(meta.Cost).
		SetLatencyMs(int(meta.LatencyMs))
	if meta.ErrorMessage != "" {
		update = update.SetErrorMessage(meta.ErrorMessage)
	}
	if meta.StartedAt != nil {
		update = update.SetStartedAt(*meta.StartedAt)
	}
	if meta.CompletedAt != nil {
		update = update.SetCompletedAt(*meta.CompletedAt)
	}
	if _, err := update.Save(ctx); err != nil {
		return fmt.Errorf("failed to update agent output: %w", err)
	}
	return nil
}

// AgentOutputRecord is the per-agent result AnalysisService.RecordAgentOutput
// persists.
type AgentOutputRecord struct {
	OutputText   string
	Status       string
	InputTokens  int
	OutputTokens int
	Cost         float64
	LatencyMs    int64
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// FindOrphanedAnalyses finds analyses stuck running past the heartbeat
// staleness threshold — the recompute-on-access orphan sweep, run
// periodically and once at startup.
func (s *AnalysisService) FindOrphanedAnalyses(ctx context.Context, staleAfter time.Duration) ([]*ent.Analysis, error) {
	threshold := time.Now().Add(-staleAfter)

	results, err := s.client.Analysis.Query().
		Where(
			analysis.StatusEQ(analysis.StatusRunning),
			analysis.LastHeartbeatAtNotNil(),
			analysis.LastHeartbeatAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned analyses: %w", err)
	}
	return results, nil
}

// MarkOrphanFailed marks a stale analysis and its job as failed.
func (s *AnalysisService) MarkOrphanFailed(ctx context.Context, analysisID string) error {
	return s.CompleteAnalysis(ctx, analysisID, CompletionResult{
		Status:       string(analysis.StatusFailed),
		ErrorMessage: "analysis orphaned: no heartbeat received within the staleness window",
	})
}
