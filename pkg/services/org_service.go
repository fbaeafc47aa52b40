// Package services contains business logic service layer implementations.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/organization"
	"github.com/brightlane/insightforge/pkg/quota"
	"github.com/google/uuid"
)

// CreateOrgRequest is the input to OrgService.CreateOrg.
type CreateOrgRequest struct {
	Name string
	Plan string
}

// OrgService manages organization (tenant) lifecycle and billing state.
type OrgService struct {
	client *ent.Client
}

// NewOrgService creates a new OrgService.
func NewOrgService(client *ent.Client) *OrgService {
	return &OrgService{client: client}
}

// CreateOrg creates a new organization with its quota cycle anchored at now.
func (s *OrgService) CreateOrg(httpCtx context.Context, req CreateOrgRequest) (*ent.Organization, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "required")
	}
	plan := req.Plan
	if plan == "" {
		plan = string(quota.PlanFree)
	}
	if _, ok := quota.LimitsFor(quota.Plan(plan)); !ok {
		return nil, NewValidationError("plan", "unknown plan")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	org, err := s.client.Organization.Create().
		SetID(uuid.New().String()).
		SetName(req.Name).
		SetPlan(organization.Plan(plan)).
		SetPlanCycleStart(time.Now()).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create org: %w", err)
	}

	return org, nil
}

// GetOrg retrieves an organization by ID.
func (s *OrgService) GetOrg(ctx context.Context, orgID string) (*ent.Organization, error) {
	org, err := s.client.Organization.Get(ctx, orgID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get org: %w", err)
	}
	return org, nil
}

// UpdatePlan changes an organization's subscription tier. It does not reset
// the usage cycle — a mid-cycle upgrade takes effect immediately but the next
// rollover still lands on the existing cycle boundary.
func (s *OrgService) UpdatePlan(httpCtx context.Context, orgID, plan string) (*ent.Organization, error) {
	if _, ok := quota.LimitsFor(quota.Plan(plan)); !ok {
		return nil, NewValidationError("plan", "unknown plan")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	org, err := s.client.Organization.UpdateOneID(orgID).
		SetPlan(organization.Plan(plan)).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	return org, nil
}

// SetPlanCycleStart resets an organization's quota cycle anchor — called by
// the billing webhook when the billing provider reports a new cycle
// boundary alongside a plan change.
func (s *OrgService) SetPlanCycleStart(httpCtx context.Context, orgID string, cycleStart time.Time) error {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	err := s.client.Organization.UpdateOneID(orgID).
		SetPlanCycleStart(cycleStart).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to reset plan cycle: %w", err)
	}
	return nil
}

// AttachStripeCustomer records the billing-provider reference for an org.
// Called by the billing webhook handler once signature verification passes.
func (s *OrgService) AttachStripeCustomer(httpCtx context.Context, orgID, stripeCustomerID string) error {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	err := s.client.Organization.UpdateOneID(orgID).
		SetStripeCustomerID(stripeCustomerID).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		if ent.IsConstraintError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to attach stripe customer: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus reflects a billing-webhook status transition
// (active / past_due / canceled).
func (s *OrgService) UpdateSubscriptionStatus(httpCtx context.Context, orgID, status string) error {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	err := s.client.Organization.UpdateOneID(orgID).
		SetSubscriptionStatus(organization.SubscriptionStatus(status)).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return nil
}

// FindByStripeCustomerID looks up the org owning a billing-provider customer
// reference — the webhook handler's entry point for routing an event.
func (s *OrgService) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*ent.Organization, error) {
	org, err := s.client.Organization.Query().
		Where(organization.StripeCustomerIDEQ(stripeCustomerID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find org by stripe customer: %w", err)
	}
	return org, nil
}
