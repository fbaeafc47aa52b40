package api

import (
	"time"

	"github.com/brightlane/insightforge/ent"
)

// TokenPairResponse is returned by register and login.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessTokenResponse is returned by the refresh endpoint.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AnalysisCreatedResponse is returned by POST /analyses.
type AnalysisCreatedResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

// AgentOutputResponse is one entry of AnalysisResponse.AgentOutputs.
type AgentOutputResponse struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Output    string `json:"output"`
	Tokens    int    `json:"tokens"`
	LatencyMs int    `json:"latency_ms"`
}

// AggregatesResponse summarizes an analysis' total resource usage.
type AggregatesResponse struct {
	Tokens    int     `json:"tokens"`
	CostUSD   float64 `json:"cost_usd"`
	LatencyMs int     `json:"latency_ms"`
}

// AnalysisResponse is returned by GET /analyses/:id.
type AnalysisResponse struct {
	ID             string                `json:"id"`
	Status         string                `json:"status"`
	Problem        string                `json:"problem"`
	BusinessType   string                `json:"business_type"`
	Depth          string                `json:"depth"`
	PartialFailure bool                  `json:"partial_failure"`
	CreatedAt      time.Time             `json:"created_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	AgentOutputs   []AgentOutputResponse `json:"agent_outputs"`
	Aggregates     AggregatesResponse    `json:"aggregates"`
}

// NewAnalysisResponse builds the detail response from a loaded analysis —
// callers must have queried it WithAgentOutputs().
func NewAnalysisResponse(a *ent.Analysis) AnalysisResponse {
	outputs := make([]AgentOutputResponse, 0, len(a.Edges.AgentOutputs))
	for _, o := range a.Edges.AgentOutputs {
		outputs = append(outputs, AgentOutputResponse{
			Name:      o.AgentName,
			Status:    string(o.Status),
			Output:    o.OutputText,
			Tokens:    o.TotalTokens,
			LatencyMs: o.LatencyMs,
		})
	}

	return AnalysisResponse{
		ID:             a.ID,
		Status:         string(a.Status),
		Problem:        a.ProblemDescription,
		BusinessType:   string(a.BusinessType),
		Depth:          string(a.Depth),
		PartialFailure: a.PartialFailure,
		CreatedAt:      a.CreatedAt,
		CompletedAt:    a.CompletedAt,
		AgentOutputs:   outputs,
		Aggregates: AggregatesResponse{
			Tokens:    a.TotalTokens,
			CostUSD:   a.TotalCost,
			LatencyMs: a.TotalLatencyMs,
		},
	}
}

// AnalysisSummaryResponse is one entry of ListAnalysesResponse.Items.
type AnalysisSummaryResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	BusinessType string    `json:"business_type"`
	Depth        string    `json:"depth"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAnalysisSummaryResponse builds one list entry from a loaded analysis.
func NewAnalysisSummaryResponse(a *ent.Analysis) AnalysisSummaryResponse {
	return AnalysisSummaryResponse{
		ID:           a.ID,
		Status:       string(a.Status),
		BusinessType: string(a.BusinessType),
		Depth:        string(a.Depth),
		CreatedAt:    a.CreatedAt,
	}
}

// ListAnalysesResponse is returned by GET /analyses.
type ListAnalysesResponse struct {
	Items      []AnalysisSummaryResponse `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

// UsageResponse reports a quota-gated feature's current consumption.
type UsageResponse struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// RefineResponse is returned by POST /analyses/:id/refine.
type RefineResponse struct {
	Reply string        `json:"reply"`
	Usage UsageResponse `json:"usage"`
}

// ErrorResponse is the JSON body returned for every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Used      int    `json:"used,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	UpgradeTo string `json:"upgrade_to,omitempty"`
}
