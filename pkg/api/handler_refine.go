package api

import (
	"net/http"

	"github.com/brightlane/insightforge/ent/analysis"
	"github.com/brightlane/insightforge/pkg/quota"
	"github.com/brightlane/insightforge/pkg/tenant"
	"github.com/gin-gonic/gin"
)

// handleRefine checks and consumes the per-analysis refine quota, appends
// the caller's message to an analysis' refinement conversation, runs one
// completion call grounded in the analysis' reviewer output and prior
// history, and appends the reply. The per-analysis lock AppendUserMessage returns is
// held for the whole turn so two concurrent refine calls on one analysis
// can never interleave.
func (s *Server) handleRefine(c *gin.Context) {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	var req RefineRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	analysisID := c.Param("id")

	a, err := s.analysisSvc.GetAnalysis(ctx, identity.OrgID, analysisID)
	if err != nil {
		respondError(c, err)
		return
	}
	if a.Status != analysis.StatusCompleted {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "analysis_not_ready"})
		return
	}

	org, err := s.orgSvc.GetOrg(ctx, identity.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}
	usage, err := s.usageSvc.CheckAndConsumeResult(ctx, org, quota.FeatureRefineMessagesPerAnalysis, &analysisID)
	if err != nil {
		respondError(c, err)
		return
	}

	_, unlock, err := s.refineSvc.AppendUserMessage(ctx, identity.OrgID, analysisID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	defer unlock()

	history, err := s.refineSvc.History(ctx, identity.OrgID, analysisID)
	if err != nil {
		respondError(c, err)
		return
	}
	// History already includes the just-appended user message; drop it so
	// the runner doesn't fold it into the conversation twice.
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	completion, err := s.refineRunner.Run(ctx, a, history, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	reply, err := s.refineSvc.AppendAssistantMessage(ctx, identity.OrgID, analysisID, completion.Text, completion.InputTokens, completion.OutputTokens)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RefineResponse{
		Reply: reply.Content,
		Usage: UsageResponse{Used: usage.Used, Limit: usage.Limit, Remaining: usage.Remaining},
	})
}
