package services

import (
	"context"
	"testing"

	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrgService_CreateOrg(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := NewOrgService(client.Client)
	ctx := context.Background()

	t.Run("defaults to free plan", func(t *testing.T) {
		org, err := svc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
		require.NoError(t, err)
		assert.Equal(t, "free", string(org.Plan))
		assert.NotZero(t, org.PlanCycleStart)
	})

	t.Run("rejects unknown plan", func(t *testing.T) {
		_, err := svc.CreateOrg(ctx, CreateOrgRequest{Name: "acme", Plan: "ultra"})
		assert.True(t, IsValidationError(err))
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := svc.CreateOrg(ctx, CreateOrgRequest{Plan: "pro"})
		assert.True(t, IsValidationError(err))
	})
}

func TestOrgService_GetOrg_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := NewOrgService(client.Client)

	_, err := svc.GetOrg(context.Background(), "missing-org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrgService_UpdatePlan(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := NewOrgService(client.Client)
	ctx := context.Background()

	org, err := svc.CreateOrg(ctx, CreateOrgRequest{Name: "acme", Plan: "free"})
	require.NoError(t, err)

	updated, err := svc.UpdatePlan(ctx, org.ID, "pro")
	require.NoError(t, err)
	assert.Equal(t, "pro", string(updated.Plan))
}

func TestOrgService_AttachStripeCustomer_EnforcesUniqueness(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := NewOrgService(client.Client)
	ctx := context.Background()

	orgA, err := svc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)
	orgB, err := svc.CreateOrg(ctx, CreateOrgRequest{Name: "globex"})
	require.NoError(t, err)

	require.NoError(t, svc.AttachStripeCustomer(ctx, orgA.ID, "cus_123"))

	found, err := svc.FindByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, orgA.ID, found.ID)

	err = svc.AttachStripeCustomer(ctx, orgB.ID, "cus_123")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}
