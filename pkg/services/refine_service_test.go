package services

import (
	"context"
	"sync"
	"testing"

	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefineService_AppendUserThenAssistant(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	refineSvc := NewRefineService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Refine this analysis with more detail on pricing.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	userMsg, unlock, err := refineSvc.AppendUserMessage(ctx, orgID, a.ID, "Can you go deeper on pricing strategy?")
	require.NoError(t, err)
	defer unlock()

	assistantMsg, err := refineSvc.AppendAssistantMessage(ctx, orgID, a.ID, "Here is a deeper look at pricing...", 50, 120)
	require.NoError(t, err)

	history, err := refineSvc.History(ctx, orgID, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, userMsg.ID, history[0].ID)
	assert.Equal(t, assistantMsg.ID, history[1].ID)
	assert.Equal(t, "user", string(history[0].Role))
	assert.Equal(t, "assistant", string(history[1].Role))

	count, err := refineSvc.CountMessages(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRefineService_AppendUserMessage_RejectsEmptyContent(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	refineSvc := NewRefineService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Another analysis to refine.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	_, _, err = refineSvc.AppendUserMessage(ctx, orgID, a.ID, "")
	assert.True(t, IsValidationError(err))
}

// TestRefineService_SerializesConcurrentTurns verifies that the per-analysis
// lock registry forces concurrent refine calls against the same analysis to
// run one at a time rather than interleave.
func TestRefineService_SerializesConcurrentTurns(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	analysisSvc := NewAnalysisService(client.Client)
	refineSvc := NewRefineService(client.Client)
	ctx := context.Background()

	orgID := newTestOrgForAnalysis(t, orgSvc)
	a, err := analysisSvc.CreateAnalysis(ctx, CreateAnalysisRequest{
		OrgID:              orgID,
		CreatorUserID:      "user-1",
		ProblemDescription: "Concurrent refine turns on the same analysis.",
		BusinessType:       "b2b_saas",
	})
	require.NoError(t, err)

	const turns = 8
	var wg sync.WaitGroup
	wg.Add(turns)
	for i := 0; i < turns; i++ {
		go func(n int) {
			defer wg.Done()
			_, unlock, err := refineSvc.AppendUserMessage(ctx, orgID, a.ID, "question")
			require.NoError(t, err)
			defer unlock()
			_, err = refineSvc.AppendAssistantMessage(ctx, orgID, a.ID, "answer", 10, 10)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := refineSvc.CountMessages(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, turns*2, count)
}
