package queue

import (
	"context"
	"testing"
	"time"

	"github.com/brightlane/insightforge/pkg/services"
	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAndRecoverOrphans_MarksStaleRunningAnalysisFailed(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := services.NewOrgService(client.Client)
	analysisSvc := services.NewAnalysisService(client.Client)
	ctx := context.Background()

	analysisID := createQueuedAnalysis(t, analysisSvc, orgSvc)
	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, analysisID, "pod-dead"))

	// Back-date the heartbeat past the staleness threshold directly, since
	// Heartbeat always stamps "now".
	require.NoError(t, client.Client.Analysis.UpdateOneID(analysisID).
		SetLastHeartbeatAt(time.Now().Add(-time.Hour)).
		Exec(ctx))

	recovered, err := detectAndRecoverOrphans(ctx, analysisSvc, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	a, err := client.Client.Analysis.Get(ctx, analysisID)
	require.NoError(t, err)
	assert.Equal(t, "failed", string(a.Status))
}

func TestDetectAndRecoverOrphans_LeavesFreshHeartbeatAlone(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := services.NewOrgService(client.Client)
	analysisSvc := services.NewAnalysisService(client.Client)
	ctx := context.Background()

	analysisID := createQueuedAnalysis(t, analysisSvc, orgSvc)
	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, analysisID, "pod-alive"))

	recovered, err := detectAndRecoverOrphans(ctx, analysisSvc, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	a, err := client.Client.Analysis.Get(ctx, analysisID)
	require.NoError(t, err)
	assert.Equal(t, "running", string(a.Status))
}

func TestCleanupStartupOrphans_OnlyRecoversThisPodsAnalyses(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := services.NewOrgService(client.Client)
	analysisSvc := services.NewAnalysisService(client.Client)
	ctx := context.Background()

	mine := createQueuedAnalysis(t, analysisSvc, orgSvc)
	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, mine, "pod-1"))

	others := createQueuedAnalysis(t, analysisSvc, orgSvc)
	require.NoError(t, analysisSvc.MarkAnalysisRunning(ctx, others, "pod-2"))

	recovered, err := CleanupStartupOrphans(ctx, analysisSvc, "pod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	a, err := client.Client.Analysis.Get(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, "failed", string(a.Status))

	b, err := client.Client.Analysis.Get(ctx, others)
	require.NoError(t, err)
	assert.Equal(t, "running", string(b.Status))
}
