package api

import (
	"net/http"
	"strconv"

	"github.com/brightlane/insightforge/pkg/quota"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/brightlane/insightforge/pkg/tenant"
	"github.com/gin-gonic/gin"
)

// handleCreateAnalysis validates the request, enforces the plan's
// analyses-per-cycle quota before ever enqueueing work, then creates the
// analysis and its backing job in one transaction.
func (s *Server) handleCreateAnalysis(c *gin.Context) {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	var req CreateAnalysisRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	org, err := s.orgSvc.GetOrg(ctx, identity.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.usageSvc.CheckAndConsume(ctx, org, quota.FeatureAnalysesCreated, nil); err != nil {
		respondError(c, err)
		return
	}

	a, err := s.analysisSvc.CreateAnalysis(ctx, services.CreateAnalysisRequest{
		OrgID:              identity.OrgID,
		CreatorUserID:      identity.UserID,
		ProblemDescription: req.ProblemDescription,
		BusinessType:       req.BusinessType,
		Depth:              req.Depth,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if !s.cfg.Queue.InProcess() {
		if job, jerr := s.analysisSvc.GetJobForAnalysis(ctx, a.ID); jerr == nil {
			_ = s.backend.Enqueue(ctx, job)
		}
	}

	c.JSON(http.StatusAccepted, AnalysisCreatedResponse{AnalysisID: a.ID, Status: string(a.Status)})
}

// handleGetAnalysis returns one analysis with its per-agent outputs,
// 404ing if it isn't owned by the caller's org — the query itself enforces
// this via the mandatory org_id filter, so an out-of-org id is
// indistinguishable from a nonexistent one.
func (s *Server) handleGetAnalysis(c *gin.Context) {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	a, err := s.analysisSvc.GetAnalysis(c.Request.Context(), identity.OrgID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAnalysisResponse(a))
}

// handleListAnalyses paginates an org's analyses newest-first.
func (s *Server) handleListAnalyses(c *gin.Context) {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	results, total, err := s.analysisSvc.ListAnalyses(c.Request.Context(), identity.OrgID, services.ListAnalysesFilters{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]AnalysisSummaryResponse, 0, len(results))
	for _, a := range results {
		items = append(items, NewAnalysisSummaryResponse(a))
	}

	resp := ListAnalysesResponse{Items: items}
	if nextOffset := offset + len(results); nextOffset < total {
		resp.NextCursor = strconv.Itoa(nextOffset)
	}
	c.JSON(http.StatusOK, resp)
}

// handleExportAnalysis feature-gates the requested format against the org's
// plan. Rendering the document itself is a separate concern; this
// endpoint's contract is the gate.
func (s *Server) handleExportAnalysis(c *gin.Context) {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	format := c.Query("format")
	if format == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "format is required"})
		return
	}

	ctx := c.Request.Context()

	org, err := s.orgSvc.GetOrg(ctx, identity.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.usageSvc.CheckExportAllowed(org, format); err != nil {
		respondError(c, err)
		return
	}

	a, err := s.analysisSvc.GetAnalysis(ctx, identity.OrgID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAnalysisResponse(a))
}
