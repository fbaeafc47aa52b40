// Package api wires the HTTP surface: routing, middleware, and the thin
// handlers that translate requests into service-layer calls and back into
// response DTOs. Business logic lives in the services/quota/orchestrator
// packages — handlers never do more than validate, call, and shape.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/config"
	"github.com/brightlane/insightforge/pkg/database"
	"github.com/brightlane/insightforge/pkg/promptstore"
	"github.com/brightlane/insightforge/pkg/queue"
	"github.com/brightlane/insightforge/pkg/ratelimit"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP API server: a gin router plus every service it
// delegates to.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cfg *config.AppConfig

	dbClient     *database.Client
	issuer       *authn.Issuer
	userSvc      *services.UserService
	orgSvc       *services.OrgService
	analysisSvc  *services.AnalysisService
	refineSvc    *services.RefineService
	usageSvc     *services.UsageService
	refineRunner *services.RefineRunner
	runner       *queue.AnalysisRunner
	backend      queue.Backend
	workerPool   *queue.WorkerPool
	prompts      *promptstore.Store

	ipLimiter   ratelimit.Limiter
	authLimiter ratelimit.Limiter
	userLimiter ratelimit.Limiter
}

// Deps bundles every dependency NewServer needs — built by cmd/server's
// composition root.
type Deps struct {
	Config       *config.AppConfig
	DBClient     *database.Client
	Issuer       *authn.Issuer
	UserSvc      *services.UserService
	OrgSvc       *services.OrgService
	AnalysisSvc  *services.AnalysisService
	RefineSvc    *services.RefineService
	UsageSvc     *services.UsageService
	RefineRunner *services.RefineRunner
	Runner       *queue.AnalysisRunner
	Backend      queue.Backend
	WorkerPool   *queue.WorkerPool
	Prompts      *promptstore.Store
	IPLimiter    ratelimit.Limiter
	AuthLimiter  ratelimit.Limiter
	UserLimiter  ratelimit.Limiter
}

// NewServer builds the router, registers every route, and wraps it in an
// *http.Server ready to Start.
func NewServer(d Deps) *Server {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:       gin.New(),
		cfg:          d.Config,
		dbClient:     d.DBClient,
		issuer:       d.Issuer,
		userSvc:      d.UserSvc,
		orgSvc:       d.OrgSvc,
		analysisSvc:  d.AnalysisSvc,
		refineSvc:    d.RefineSvc,
		usageSvc:     d.UsageSvc,
		refineRunner: d.RefineRunner,
		runner:       d.Runner,
		backend:      d.Backend,
		workerPool:   d.WorkerPool,
		prompts:      d.Prompts,
		ipLimiter:    d.IPLimiter,
		authLimiter:  d.AuthLimiter,
		userLimiter:  d.UserLimiter,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(securityHeaders())
	s.router.Use(cors(d.Config.CORS.AllowOrigins))

	s.setupRoutes()
	return s
}

// Handler exposes the underlying router — mainly for tests that drive
// requests with httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health/live", s.handleHealthLive)
	s.router.GET("/health/ready", s.handleHealthReady)

	auth := s.router.Group("/auth")
	auth.Use(rateLimitBy(s.authLimiter, byClientIP))
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/refresh", s.handleRefresh)

	s.router.POST("/webhooks/billing", rateLimitBy(s.ipLimiter, byClientIP), s.handleBillingWebhook)

	authed := s.router.Group("")
	authed.Use(rateLimitBy(s.ipLimiter, byClientIP))
	authed.Use(requireAuth(s.issuer))
	authed.Use(rateLimitBy(s.userLimiter, byUser))

	authed.POST("/analyses", s.handleCreateAnalysis)
	authed.GET("/analyses", s.handleListAnalyses)
	authed.GET("/analyses/:id", s.handleGetAnalysis)
	authed.GET("/analyses/:id/export", s.handleExportAnalysis)
	authed.POST("/analyses/:id/refine", s.handleRefine)
}

// Start begins serving on addr (non-blocking caller pattern: run in a
// goroutine and Shutdown on signal).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
