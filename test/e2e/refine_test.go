package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefine_HappyPathAndFreeplanCap(t *testing.T) {
	app := newTestApp(t)
	user := app.register(t, "owner@acme.test", "Acme Co")

	resp := app.post(t, "/analyses", user.AccessToken, createAnalysisBody())
	require.Equal(t, http.StatusAccepted, resp.status)
	var created struct {
		AnalysisID string `json:"analysis_id"`
	}
	require.NoError(t, decodeJSON(t, resp.body, &created))

	waitForStatus(t, app, user.AccessToken, created.AnalysisID, 10*time.Second, "completed", "failed")

	// Free plan allows 3 refine messages per analysis.
	for i := 0; i < 3; i++ {
		refineResp := app.post(t, "/analyses/"+created.AnalysisID+"/refine", user.AccessToken, map[string]string{
			"message": "Can you expand on the retention risk?",
		})
		require.Equalf(t, http.StatusOK, refineResp.status, "refine message #%d should succeed", i+1)

		var body struct {
			Reply string `json:"reply"`
			Usage struct {
				Used      int `json:"used"`
				Limit     int `json:"limit"`
				Remaining int `json:"remaining"`
			} `json:"usage"`
		}
		require.NoError(t, decodeJSON(t, refineResp.body, &body))
		require.NotEmpty(t, body.Reply)
		require.Equal(t, i+1, body.Usage.Used)
		require.Equal(t, 3, body.Usage.Limit)
	}

	fourthResp := app.post(t, "/analyses/"+created.AnalysisID+"/refine", user.AccessToken, map[string]string{
		"message": "One more question.",
	})
	require.Equal(t, http.StatusPaymentRequired, fourthResp.status)

	var errBody struct {
		Error string `json:"error"`
		Used  int    `json:"used"`
		Limit int    `json:"limit"`
	}
	require.NoError(t, decodeJSON(t, fourthResp.body, &errBody))
	require.Equal(t, "quota_exceeded", errBody.Error)
	require.Equal(t, 3, errBody.Used)
	require.Equal(t, 3, errBody.Limit)
}

func TestRefine_RejectedBeforeAnalysisCompletes(t *testing.T) {
	app := newTestApp(t)
	user := app.register(t, "owner@acme.test", "Acme Co")

	app.provider.hang("analyst")

	resp := app.post(t, "/analyses", user.AccessToken, createAnalysisBody())
	require.Equal(t, http.StatusAccepted, resp.status)
	var created struct {
		AnalysisID string `json:"analysis_id"`
	}
	require.NoError(t, decodeJSON(t, resp.body, &created))

	refineResp := app.post(t, "/analyses/"+created.AnalysisID+"/refine", user.AccessToken, map[string]string{
		"message": "too early",
	})
	require.Equal(t, http.StatusConflict, refineResp.status)
}
