// Package e2e drives the full HTTP surface — registration through analysis
// completion and refinement — against a real Postgres schema and a stub LLM
// provider, exercising the same wiring cmd/server assembles in production.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brightlane/insightforge/pkg/api"
	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/config"
	testdatabase "github.com/brightlane/insightforge/test/database"

	"github.com/brightlane/insightforge/pkg/llmprovider"
	"github.com/brightlane/insightforge/pkg/promptstore"
	"github.com/brightlane/insightforge/pkg/queue"
	"github.com/brightlane/insightforge/pkg/ratelimit"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every completion call immediately with a short,
// deterministic reply unless a canned behavior was registered for the
// agent's template — used to drive the orchestrator through an entire
// five-agent run in test time instead of waiting on a real model.
type stubProvider struct {
	mu        sync.Mutex
	calls     int
	behaviors map[string]func() (*llmprovider.Completion, error)
}

func newStubProvider() *stubProvider {
	return &stubProvider{behaviors: make(map[string]func() (*llmprovider.Completion, error))}
}

func (p *stubProvider) failOnce(phrase string, kind llmprovider.ErrorKind) {
	var fired bool
	p.behaviors[phrase] = func() (*llmprovider.Completion, error) {
		if !fired {
			fired = true
			return nil, &llmprovider.ProviderError{Kind: kind, Err: context.DeadlineExceeded}
		}
		return &llmprovider.Completion{Text: "recovered after retry", InputTokens: 50, OutputTokens: 60}, nil
	}
}

func (p *stubProvider) hang(phrase string) {
	p.behaviors[phrase] = nil
}

func (p *stubProvider) Complete(ctx context.Context, systemPrompt, userMessage, model string, maxTokens int, deadline time.Time) (*llmprovider.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	for phrase, behavior := range p.behaviors {
		if !strings.Contains(systemPrompt, phrase) {
			continue
		}
		if behavior == nil {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return behavior()
	}

	return &llmprovider.Completion{
		Text:         "Stubbed analysis output for testing: " + userMessage[:min(40, len(userMessage))],
		InputTokens:  80,
		OutputTokens: 120,
	}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// testApp bundles a running httptest server and the components a scenario
// test needs direct access to (the stub provider, for injecting failures;
// the issuer, for decoding a token's org id in cross-tenant assertions).
type testApp struct {
	server      *httptest.Server
	provider    *stubProvider
	issuer      *authn.Issuer
	userSvc     *services.UserService
	orgSvc      *services.OrgService
	analysisSvc *services.AnalysisService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithPool(t, true)
}

// newTestAppWithPool builds the same wiring as newTestApp but lets the
// caller skip starting the worker pool — used by scenarios that manipulate
// analysis/job rows directly and would otherwise race a live poller.
func newTestAppWithPool(t *testing.T, startPool bool) *testApp {
	t.Helper()

	dbClient := testdatabase.NewTestClient(t)

	cfg := &config.AppConfig{
		Environment: "development",
		Auth: config.AuthConfig{
			SigningSecret:   "test-signing-secret-at-least-32-bytes-long",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
		CORS: config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}},
		Billing: config.BillingConfig{
			WebhookSecret: "test-billing-secret",
		},
		Worker: config.WorkerConfig{
			PoolSize:                2,
			PollInterval:            20 * time.Millisecond,
			PollIntervalJitter:      5 * time.Millisecond,
			HeartbeatInterval:       200 * time.Millisecond,
			OrphanThreshold:         time.Minute,
			OrphanDetectionInterval: time.Minute,
			AgentTimeout:            2 * time.Second,
			AnalysisTimeout:         10 * time.Second,
			MaxConcurrentAnalyses:   8,
		},
	}

	provider := newStubProvider()
	prompts, err := promptstore.New()
	require.NoError(t, err)

	issuer := authn.NewIssuer(cfg.Auth.SigningSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	userSvc := services.NewUserService(dbClient.Client)
	orgSvc := services.NewOrgService(dbClient.Client)
	analysisSvc := services.NewAnalysisService(dbClient.Client)
	refineSvc := services.NewRefineService(dbClient.Client)
	usageSvc := services.NewUsageService(dbClient.Client)

	const model = "claude-3-7-sonnet"
	retrying := llmprovider.NewRetrying(provider)
	runner := queue.NewAnalysisRunner(dbClient.Client, analysisSvc, retrying, prompts, model)
	refineRunner := services.NewRefineRunner(dbClient.Client, retrying, prompts, model)

	backend := queue.NewInProcessBackend(analysisSvc)
	pool := queue.NewWorkerPool("e2e-pod", dbClient.Client, cfg.Worker, analysisSvc, runner, backend)

	ctx, cancel := context.WithCancel(context.Background())
	if startPool {
		pool.Start(ctx)
	}
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	ipLimiter := ratelimit.NewInMemoryLimiter(10_000, time.Minute)
	authLimiter := ratelimit.NewInMemoryLimiter(10_000, time.Minute)
	userLimiter := ratelimit.NewInMemoryLimiter(10_000, time.Minute)

	server := api.NewServer(api.Deps{
		Config:       cfg,
		DBClient:     dbClient,
		Issuer:       issuer,
		UserSvc:      userSvc,
		OrgSvc:       orgSvc,
		AnalysisSvc:  analysisSvc,
		RefineSvc:    refineSvc,
		UsageSvc:     usageSvc,
		RefineRunner: refineRunner,
		Runner:       runner,
		Backend:      backend,
		WorkerPool:   pool,
		Prompts:      prompts,
		IPLimiter:    ipLimiter,
		AuthLimiter:  authLimiter,
		UserLimiter:  userLimiter,
	})

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &testApp{
		server:      httpServer,
		provider:    provider,
		issuer:      issuer,
		userSvc:     userSvc,
		orgSvc:      orgSvc,
		analysisSvc: analysisSvc,
	}
}

// addUserToOrg registers a second user directly against an existing org,
// bypassing /auth/register (which always creates a new org), and issues it
// an access token — used by scenarios asserting same-org visibility across
// teammates.
func (a *testApp) addUserToOrg(t *testing.T, orgID, email string) registeredUser {
	t.Helper()

	u, err := a.userSvc.Register(context.Background(), services.RegisterUserRequest{
		OrgID:    orgID,
		Email:    email,
		Password: "correct-horse-battery-1",
		Role:     "member",
	})
	require.NoError(t, err)

	org, err := a.orgSvc.GetOrg(context.Background(), orgID)
	require.NoError(t, err)

	token, err := a.issuer.IssueAccessToken(u.ID, orgID, string(org.Plan))
	require.NoError(t, err)

	return registeredUser{AccessToken: token, OrgID: orgID}
}

// registeredUser is the token pair and identifiers returned by registering a
// fresh org+user pair.
type registeredUser struct {
	AccessToken string
	OrgID       string
}

func (a *testApp) register(t *testing.T, email, orgName string) registeredUser {
	t.Helper()

	body := map[string]string{
		"email":    email,
		"password": "correct-horse-battery-1",
		"org_name": orgName,
	}
	resp := a.post(t, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, resp.status)

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &tokens))

	claims, err := a.issuer.Verify(tokens.AccessToken, authn.TokenTypeAccess)
	require.NoError(t, err)

	return registeredUser{AccessToken: tokens.AccessToken, OrgID: claims.OrgID}
}

type httpResponse struct {
	status int
	body   []byte
}

func (a *testApp) post(t *testing.T, path, bearer string, payload any) httpResponse {
	t.Helper()
	return a.do(t, http.MethodPost, path, bearer, payload)
}

func (a *testApp) get(t *testing.T, path, bearer string) httpResponse {
	t.Helper()
	return a.do(t, http.MethodGet, path, bearer, nil)
}

func (a *testApp) do(t *testing.T, method, path, bearer string, payload any) httpResponse {
	t.Helper()

	var reader *strings.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}

	return httpResponse{status: resp.StatusCode, body: buf}
}

func decodeJSON(t *testing.T, body []byte, dst any) error {
	t.Helper()
	return json.Unmarshal(body, dst)
}

// waitForStatus polls GET /analyses/:id until it reports one of the target
// statuses or the deadline passes.
func waitForStatus(t *testing.T, app *testApp, bearer, analysisID string, timeout time.Duration, want ...string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp := app.get(t, "/analyses/"+analysisID, bearer)
		require.Equal(t, http.StatusOK, resp.status)

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.body, &body))

		status, _ := body["status"].(string)
		for _, w := range want {
			if status == w {
				return body
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("analysis %s did not reach status %v within %s", analysisID, want, timeout)
	return nil
}
