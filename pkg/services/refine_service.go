package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/analysis"
	"github.com/brightlane/insightforge/ent/refinemessage"
	"github.com/google/uuid"
)

// refineLockRegistry serializes concurrent refine calls against the same
// analysis — two messages racing on one conversation would otherwise
// interleave unpredictably in the completion provider's view of history.
// Generalizes the worker pool's per-session cancel registry (a plain map
// guarded by a mutex) to a lock registry.
type refineLockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRefineLockRegistry() *refineLockRegistry {
	return &refineLockRegistry{locks: make(map[string]*sync.Mutex)}
}

func (r *refineLockRegistry) lockFor(analysisID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[analysisID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[analysisID] = l
	}
	return l
}

// RefineService appends paired user/assistant messages to an analysis'
// refinement conversation and reads that history back. The prompt for the
// assistant turn is composed by RefineRunner, not here.
type RefineService struct {
	client *ent.Client
	locks  *refineLockRegistry
}

// NewRefineService creates a new RefineService.
func NewRefineService(client *ent.Client) *RefineService {
	return &RefineService{client: client, locks: newRefineLockRegistry()}
}

// History returns an analysis' refinement conversation in chronological
// order — the context a completion provider call folds into its prompt.
func (s *RefineService) History(ctx context.Context, orgID, analysisID string) ([]*ent.RefineMessage, error) {
	a, err := s.client.Analysis.Query().
		Where(analysis.IDEQ(analysisID), analysis.OrgIDEQ(orgID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify analysis: %w", err)
	}

	messages, err := s.client.RefineMessage.Query().
		Where(refinemessage.AnalysisIDEQ(a.ID)).
		Order(ent.Asc(refinemessage.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load refine history: %w", err)
	}
	return messages, nil
}

// AppendUserMessage records the user's half of a refine turn. Returns the
// per-analysis unlock function the caller must defer-call after the
// corresponding AppendAssistantMessage completes, so the pair is never
// interleaved with a concurrent refine call on the same analysis.
func (s *RefineService) AppendUserMessage(httpCtx context.Context, orgID, analysisID, content string) (*ent.RefineMessage, func(), error) {
	if content == "" {
		return nil, nil, NewValidationError("content", "required")
	}

	lock := s.locks.lockFor(analysisID)
	lock.Lock()
	unlock := sync.OnceFunc(lock.Unlock)

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	a, err := s.client.Analysis.Query().
		Where(analysis.IDEQ(analysisID), analysis.OrgIDEQ(orgID)).
		Only(ctx)
	if err != nil {
		unlock()
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to verify analysis: %w", err)
	}

	msg, err := s.client.RefineMessage.Create().
		SetID(uuid.New().String()).
		SetAnalysisID(a.ID).
		SetOrgID(orgID).
		SetRole(refinemessage.RoleUser).
		SetContent(content).
		Save(ctx)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("failed to record user message: %w", err)
	}

	return msg, unlock, nil
}

// AppendAssistantMessage records the assistant's reply to a refine turn.
// Always call the unlock function returned by AppendUserMessage after this,
// success or failure, so the lock is released exactly once.
func (s *RefineService) AppendAssistantMessage(ctx context.Context, orgID, analysisID, content string, inputTokens, outputTokens int) (*ent.RefineMessage, error) {
	create := s.client.RefineMessage.Create().
		SetID(uuid.New().String()).
		SetAnalysisID(analysisID).
		SetOrgID(orgID).
		SetRole(refinemessage.RoleAssistant).
		SetContent(content).
		SetInputTokens(inputTokens).
		SetOutputTokens(outputTokens)

	msg, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record assistant message: %w", err)
	}
	return msg, nil
}

// CountMessages returns how many refine messages exist for an analysis.
// The refine quota is not derived from it: the quota engine keeps its own
// per-analysis counter under FeatureRefineMessagesPerAnalysis.
func (s *RefineService) CountMessages(ctx context.Context, analysisID string) (int, error) {
	count, err := s.client.RefineMessage.Query().
		Where(refinemessage.AnalysisIDEQ(analysisID)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count refine messages: %w", err)
	}
	return count, nil
}
