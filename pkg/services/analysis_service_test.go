package services

import (
	"context"
	"testing"
	"time"

	"github.com/brightlane/insightforge/ent/analysis"
	"github.com/brightlane/insightforge/ent/job"
	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrgForAnalysis(t *testing.T, orgSvc *OrgService) string {
	t.Helper()
	org, err := orgSvc.CreateOrg(context.Background(), CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)
	return org.ID
}

func TestAnalysisService_CreateAnalysis_AlsoEnqueuesJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)

	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Sales dropped 20% over the last quarter.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)
	assert.Equal(t, "standard", string(a.Depth))
	assert.Equal(t, "pending", string(a.Status))

	j, err := client.Client.Job.Query().Where(job.AnalysisIDEQ(a.ID)).Only(ctx)
	require.NoError(t, err)
	assert.Equal(t, "queued", string(j.Status))
	assert.Equal(t, orgID, j.OrgID)
}

func TestAnalysisService_CreateAnalysis_RejectsOversizedProblem(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)

	huge := make([]byte, 8001)
	for i := range huge {
		huge[i] = 'x'
	}

	_, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: string(huge),
		BusinessType:       "b2b_saas",
	})
	assert.True(t, IsValidationError(err))
}

func TestAnalysisService_ClaimNextJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Churn is increasing month over month.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	claimed, err := analysisSvc.ClaimNextJob(ctx, "pod-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, a.ID, claimed.AnalysisID)
	assert.Equal(t, "running", string(claimed.Status))
	assert.Equal(t, "pod-1", *claimed.PodID)

	again, err := analysisSvc.ClaimNextJob(ctx, "pod-2")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestAnalysisService_CompleteAnalysis(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Need a go-to-market plan for a new region.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, a.ID, "pod-1"))

	err = analysisSvc.CompleteAnalysis(ctx, a.ID, CompletionResult{
		Status:         string(analysis.StatusCompleted),
		TotalInputTok:  100,
		TotalOutputTok: 200,
		TotalTokens:    300,
		TotalCost:      0.42,
		TotalLatencyMs: 5000,
	})
	require.NoError(t, err)

	got, err := analysisSvc.GetAnalysis(ctx, orgID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(got.Status))
	assert.Equal(t, 300, got.TotalTokens)
	assert.NotNil(t, got.CompletedAt)
}

func TestAnalysisService_RecordAgentOutput_UpsertsOnce(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Assess competitive positioning in the mid-market.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	require.NoError(t, analysisSvc.RecordAgentOutput(ctx, a.ID, "analyst", AgentOutputRecord{
		OutputText: "draft output", Status: "running",
	}))
	require.NoError(t, analysisSvc.RecordAgentOutput(ctx, a.ID, "analyst", AgentOutputRecord{
		OutputText: "final output", Status: "completed", InputTokens: 10, OutputTokens: 20,
	}))

	got, err := analysisSvc.GetAnalysis(ctx, orgID, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Edges.AgentOutputs, 1)
	assert.Equal(t, "final output", got.Edges.AgentOutputs[0].OutputText)
	assert.Equal(t, "completed", string(got.Edges.AgentOutputs[0].Status))
}

func TestAnalysisService_FindOrphanedAnalyses(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Orphan candidate for the sweep.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)
	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, a.ID, "pod-1"))

	// Backdate the heartbeat so it looks stale.
	_, err = client.Client.Analysis.UpdateOneID(a.ID).
		SetLastHeartbeatAt(time.Now().Add(-10 * time.Minute)).
		Save(ctx)
	require.NoError(t, err)

	orphans, err := analysisSvc.FindOrphanedAnalyses(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, a.ID, orphans[0].ID)

	require.NoError(t, analysisSvc.MarkOrphanFailed(ctx, a.ID))
	got, err := analysisSvc.GetAnalysis(ctx, orgID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", string(got.Status))
}
