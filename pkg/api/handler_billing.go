package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const billingSignatureHeader = "X-Webhook-Signature"

// handleBillingWebhook verifies the request body against an HMAC-SHA256
// signature computed with the configured shared secret before trusting any
// of its content — billing-plan changes are the one endpoint that crosses
// a trust boundary from outside the system entirely.
func (s *Server) handleBillingWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "body unreadable"})
		return
	}

	if !verifyBillingSignature(s.cfg.Billing.WebhookSecret, body, c.GetHeader(billingSignatureHeader)) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_signature"})
		return
	}

	var req BillingWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "malformed body"})
		return
	}
	if req.OrgID == "" || req.NewPlan == "" || req.CycleStart == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "org_id, new_plan, and cycle_start are required"})
		return
	}
	cycleStart, err := time.Parse(time.RFC3339, req.CycleStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "cycle_start must be RFC3339"})
		return
	}

	ctx := c.Request.Context()

	if _, err := s.orgSvc.GetOrg(ctx, req.OrgID); err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.orgSvc.UpdatePlan(ctx, req.OrgID, req.NewPlan); err != nil {
		respondError(c, err)
		return
	}
	if err := s.orgSvc.UpdateSubscriptionStatus(ctx, req.OrgID, "active"); err != nil {
		respondError(c, err)
		return
	}
	if err := s.orgSvc.SetPlanCycleStart(ctx, req.OrgID, cycleStart); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifyBillingSignature computes HMAC-SHA256 over body with secret and
// compares it against the hex-encoded signature header using a
// constant-time comparison.
func verifyBillingSignature(secret string, body []byte, signatureHeader string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
