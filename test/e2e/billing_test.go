package e2e

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBillingSecret = "test-billing-secret"

func signBillingBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testBillingSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *testApp) postBillingWebhook(t *testing.T, payload map[string]string, signature string) httpResponse {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/webhooks/billing", strings.NewReader(string(raw)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		n, err := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return httpResponse{status: resp.StatusCode, body: buf}
}

func TestBillingWebhook_UpgradesPlanWithValidSignature(t *testing.T) {
	app := newTestAppWithPool(t, false)
	user := app.register(t, "owner@acme.test", "Acme Co")

	payload := map[string]string{
		"org_id":      user.OrgID,
		"new_plan":    "pro",
		"cycle_start": time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp := app.postBillingWebhook(t, payload, signBillingBody(raw))
	require.Equal(t, http.StatusOK, resp.status)

	for i := 0; i < 6; i++ {
		analysisResp := app.post(t, "/analyses", user.AccessToken, createAnalysisBody())
		require.Equalf(t, http.StatusAccepted, analysisResp.status, "pro plan should accept analysis #%d", i+1)
	}
}

func TestBillingWebhook_RejectsBadSignature(t *testing.T) {
	app := newTestAppWithPool(t, false)
	user := app.register(t, "owner@acme.test", "Acme Co")

	payload := map[string]string{
		"org_id":      user.OrgID,
		"new_plan":    "pro",
		"cycle_start": time.Now().UTC().Format(time.RFC3339),
	}

	resp := app.postBillingWebhook(t, payload, "0000000000000000000000000000000000000000000000000000000000000000")
	require.Equal(t, http.StatusBadRequest, resp.status)
}
