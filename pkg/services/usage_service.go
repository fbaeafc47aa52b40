package services

import (
	"context"
	"fmt"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/quota"
)

// UsageService adapts the quota engine's Result into the package's sentinel
// error idiom (errors.As(..., *QuotaError)) so API handlers don't need to
// import pkg/quota directly.
type UsageService struct {
	client *ent.Client
	engine *quota.Engine
}

// NewUsageService creates a new UsageService.
func NewUsageService(client *ent.Client) *UsageService {
	return &UsageService{client: client, engine: quota.NewEngine(client)}
}

// CheckAndConsume enforces one unit of a countable feature against the org's
// plan, returning a *QuotaError (wrapping ErrQuotaExceeded) when denied. key
// is nil for org-scoped features and an analysis ID for
// FeatureRefineMessagesPerAnalysis.
func (s *UsageService) CheckAndConsume(ctx context.Context, org *ent.Organization, feature quota.Feature, key *string) error {
	result, err := s.engine.CheckAndConsume(ctx, org, feature, key)
	if err != nil {
		return fmt.Errorf("failed to check quota: %w", err)
	}
	if !result.Allowed {
		return &QuotaError{
			Feature:           string(feature),
			Limit:             result.Limit,
			Used:              result.Used,
			UpgradeSuggestion: result.UpgradeSuggestion,
		}
	}
	return nil
}

// CheckAndConsumeResult is CheckAndConsume but also returns the engine's
// raw Result on success, for callers that need to report back used/limit
// (e.g. the refine endpoint's response body).
func (s *UsageService) CheckAndConsumeResult(ctx context.Context, org *ent.Organization, feature quota.Feature, key *string) (*quota.Result, error) {
	result, err := s.engine.CheckAndConsume(ctx, org, feature, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !result.Allowed {
		return nil, &QuotaError{
			Feature:           string(feature),
			Limit:             result.Limit,
			Used:              result.Used,
			UpgradeSuggestion: result.UpgradeSuggestion,
		}
	}
	return result, nil
}

// CheckAgentAllowed rejects agents excluded by the org's plan.
func (s *UsageService) CheckAgentAllowed(org *ent.Organization, agentName string) error {
	limits, ok := quota.LimitsFor(quota.Plan(org.Plan))
	if !ok {
		return fmt.Errorf("usage: unknown plan %q", org.Plan)
	}
	if !limits.AllowsAgent(agentName) {
		return ErrAgentNotAllowed
	}
	return nil
}

// CheckExportAllowed rejects export formats excluded by the org's plan.
func (s *UsageService) CheckExportAllowed(org *ent.Organization, format string) error {
	limits, ok := quota.LimitsFor(quota.Plan(org.Plan))
	if !ok {
		return fmt.Errorf("usage: unknown plan %q", org.Plan)
	}
	if !limits.AllowsExport(format) {
		return ErrExportNotAllowed
	}
	return nil
}
