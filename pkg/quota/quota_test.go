package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/organization"
	"github.com/brightlane/insightforge/pkg/quota"
	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func createOrg(t *testing.T, client *ent.Client, plan string, cycleStart time.Time) *ent.Organization {
	t.Helper()
	org, err := client.Organization.Create().
		SetID(uuid.NewString()).
		SetName("acme").
		SetPlan(organization.Plan(plan)).
		SetPlanCycleStart(cycleStart).
		Save(context.Background())
	require.NoError(t, err)
	return org
}

func TestCheckAndConsume_AllowsUnderLimit(t *testing.T) {
	client := testdb.NewTestClient(t)
	org := createOrg(t, client.Client, "free", time.Now())
	engine := quota.NewEngine(client.Client)

	result, err := engine.CheckAndConsume(context.Background(), org, quota.FeatureAnalysesCreated, nil)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, 1, result.Used)
	require.Equal(t, 5, result.Limit)
	require.Equal(t, 4, result.Remaining)
}

func TestCheckAndConsume_DeniesAtLimit(t *testing.T) {
	client := testdb.NewTestClient(t)
	org := createOrg(t, client.Client, "free", time.Now())
	engine := quota.NewEngine(client.Client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := engine.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil)
		require.NoError(t, err)
		require.Truef(t, result.Allowed, "call %d should be allowed", i)
	}

	result, err := engine.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, 5, result.Used)
	require.Equal(t, 0, result.Remaining)
	require.Equal(t, "pro", result.UpgradeSuggestion)
}

func TestCheckAndConsume_Unbounded_NeverTouchesCounter(t *testing.T) {
	client := testdb.NewTestClient(t)
	org := createOrg(t, client.Client, "enterprise", time.Now())
	engine := quota.NewEngine(client.Client)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := engine.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, quota.Unbounded, result.Limit)
	}

	count, err := client.UsageCounter.Query().Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

// TestCheckAndConsume_PerAnalysisKeyIsolatesCounters verifies that the
// refine-message counter is keyed per analysis: exhausting one analysis'
// allowance never affects another's.
func TestCheckAndConsume_PerAnalysisKeyIsolatesCounters(t *testing.T) {
	client := testdb.NewTestClient(t)
	org := createOrg(t, client.Client, "free", time.Now())
	engine := quota.NewEngine(client.Client)
	ctx := context.Background()

	analysisA := uuid.NewString()
	analysisB := uuid.NewString()

	for i := 0; i < 3; i++ {
		result, err := engine.CheckAndConsume(ctx, org, quota.FeatureRefineMessagesPerAnalysis, &analysisA)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	denied, err := engine.CheckAndConsume(ctx, org, quota.FeatureRefineMessagesPerAnalysis, &analysisA)
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	allowed, err := engine.CheckAndConsume(ctx, org, quota.FeatureRefineMessagesPerAnalysis, &analysisB)
	require.NoError(t, err)
	require.True(t, allowed.Allowed)
	require.Equal(t, 1, allowed.Used)
}

func TestCheckAndConsume_RollsOverToNewCycle(t *testing.T) {
	client := testdb.NewTestClient(t)
	// Backdate the cycle start so "now" already falls two cycles later —
	// exercises the lazy rollover without a background job.
	cycleStart := time.Now().Add(-61 * 24 * time.Hour)
	org := createOrg(t, client.Client, "free", cycleStart)
	engine := quota.NewEngine(client.Client)
	ctx := context.Background()

	result, err := engine.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, 1, result.Used, "counter for the new period should start fresh")
}

// TestCheckAndConsume_ConcurrentCallsSerializeViaForUpdate exercises the
// FOR UPDATE row lock: N goroutines race to consume the same counter and
// exactly `limit` of them must win.
func TestCheckAndConsume_ConcurrentCallsSerializeViaForUpdate(t *testing.T) {
	client := testdb.NewTestClient(t)
	org := createOrg(t, client.Client, "free", time.Now())
	engine := quota.NewEngine(client.Client)
	ctx := context.Background()

	const attempts = 10
	allowedCount := make(chan bool, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			result, err := engine.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil)
			if err != nil {
				return err
			}
			allowedCount <- result.Allowed
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(allowedCount)

	allowed := 0
	for a := range allowedCount {
		if a {
			allowed++
		}
	}
	require.Equal(t, 5, allowed)
}
