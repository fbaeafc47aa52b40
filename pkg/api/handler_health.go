package api

import (
	"net/http"

	"github.com/brightlane/insightforge/pkg/database"
	"github.com/brightlane/insightforge/pkg/quota"
	"github.com/brightlane/insightforge/pkg/version"
	"github.com/gin-gonic/gin"
)

// handleHealthLive reports only that the process is up and serving — no
// dependency checks, so a liveness probe never flaps on a transient DB
// hiccup a readiness probe is meant to catch instead.
func (s *Server) handleHealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Full()})
}

// handleHealthReady reports whether the service can actually do work: the
// database is reachable, the worker pool is healthy, and the DAG plan for
// the free tier resolves without error (its layer count is reported, not
// compared against a fixed value).
func (s *Server) handleHealthReady(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus, dbErr := database.Health(ctx, s.dbClient.DB())

	poolHealth := s.workerPool.Health(ctx)

	layers, layerErr := s.runner.LayerCount(quota.PlanFree)

	ready := dbErr == nil && poolHealth.IsHealthy && layerErr == nil

	body := gin.H{
		"ready":        ready,
		"database":     dbStatus,
		"worker_pool":  poolHealth,
		"dag_layers":   layers,
		"queue_backend": poolHealth.Backend,
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
