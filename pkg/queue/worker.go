package queue

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/config"
	"github.com/brightlane/insightforge/pkg/services"
)

// analysisRegistry is the subset of WorkerPool a Worker needs — narrowed so
// worker_test.go can exercise a Worker against a fake pool.
type analysisRegistry interface {
	registerAnalysis(analysisID string, cancel context.CancelFunc)
	unregisterAnalysis(analysisID string)
}

// Worker repeatedly claims the next available job from Backend and drives
// it to completion through AnalysisExecutor, reporting its own status for
// health checks.
type Worker struct {
	id          string
	podID       string
	client      *ent.Client
	config      config.WorkerConfig
	analysisSvc *services.AnalysisService
	runner      AnalysisExecutor
	backend     Backend
	pool        analysisRegistry

	mu                sync.Mutex
	status            string // idle | working
	currentAnalysisID string
	analysesProcessed int
	lastActivity      time.Time
}

func newWorker(id, podID string, client *ent.Client, cfg config.WorkerConfig, analysisSvc *services.AnalysisService, runner AnalysisExecutor, backend Backend, pool analysisRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		client:       client,
		config:       cfg,
		analysisSvc:  analysisSvc,
		runner:       runner,
		backend:      backend,
		pool:         pool,
		status:       "idle",
		lastActivity: time.Now(),
	}
}

// Run polls until stopCh closes or ctx is canceled.
func (w *Worker) Run(ctx context.Context, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		claimed, err := w.pollAndProcess(ctx)
		if err != nil && ctx.Err() == nil {
			// Transient claim/process errors never stop the poll loop — the
			// next iteration just tries again.
			slog.Error("worker poll failed", "worker_id", w.id, "error", err)
		}
		if claimed {
			continue
		}

		w.sleep(w.pollInterval(), stopCh)
	}
}

func (w *Worker) sleep(d time.Duration, stopCh <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stopCh:
	}
}

// pollInterval adds jitter to the configured poll interval so that a pool
// of workers doesn't thundering-herd the claim query in lockstep.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	return base + time.Duration(rand.Int64N(int64(jitter)))
}

// pollAndProcess claims at most one job and, if one was available, runs it
// end to end. Returns claimed=true if a job was found (regardless of
// outcome), so the caller can skip its poll-interval sleep and immediately
// look for more work.
func (w *Worker) pollAndProcess(ctx context.Context) (claimed bool, err error) {
	j, err := w.backend.Claim(ctx, w.podID)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, nil
	}

	w.setWorking(j.AnalysisID)
	defer w.setIdle()

	runCtx, cancel := context.WithTimeout(ctx, w.config.AnalysisTimeout)
	defer cancel()

	w.pool.registerAnalysis(j.AnalysisID, cancel)
	defer w.pool.unregisterAnalysis(j.AnalysisID)

	if err := w.analysisSvc.MarkAnalysisRunning(runCtx, j.AnalysisID, w.podID); err != nil {
		_ = w.backend.Nack(ctx, j.ID, err.Error())
		return true, err
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(runCtx)
	var hbWg sync.WaitGroup
	hbWg.Add(1)
	go func() {
		defer hbWg.Done()
		w.runHeartbeat(heartbeatCtx, j.AnalysisID)
	}()

	result := w.runner.Execute(runCtx, j.AnalysisID)

	stopHeartbeat()
	hbWg.Wait()

	completion := services.CompletionResult{
		Status:         result.Status,
		PartialFailure: result.PartialFailure,
		TotalInputTok:  result.TotalInputTok,
		TotalOutputTok: result.TotalOutputTok,
		TotalTokens:    result.TotalTokens,
		TotalCost:      result.TotalCost,
		TotalLatencyMs: result.TotalLatencyMs,
	}
	if result.Error != nil {
		completion.ErrorMessage = result.Error.Error()
	}
	if completion.Status == "" {
		completion.Status = "failed"
		if completion.ErrorMessage == "" {
			completion.ErrorMessage = "analysis run produced no terminal status"
		}
	}

	if err := w.analysisSvc.CompleteAnalysis(context.WithoutCancel(ctx), j.AnalysisID, completion); err != nil {
		_ = w.backend.Nack(ctx, j.ID, err.Error())
		return true, err
	}

	if completion.Status == "failed" {
		_ = w.backend.Nack(ctx, j.ID, completion.ErrorMessage)
	} else {
		_ = w.backend.Ack(ctx, j.ID)
	}

	w.recordProcessed()
	return true, nil
}

// runHeartbeat refreshes the analysis' last_heartbeat_at on a ticker until
// ctx is canceled — the orphan sweep's staleness signal.
func (w *Worker) runHeartbeat(ctx context.Context, analysisID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.analysisSvc.Heartbeat(context.WithoutCancel(ctx), analysisID)
		}
	}
}

func (w *Worker) setWorking(analysisID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = "working"
	w.currentAnalysisID = analysisID
	w.lastActivity = time.Now()
}

func (w *Worker) setIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = "idle"
	w.currentAnalysisID = ""
	w.lastActivity = time.Now()
}

func (w *Worker) recordProcessed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.analysesProcessed++
}

// Health reports this worker's current state for PoolHealth.
func (w *Worker) Health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            w.status,
		CurrentAnalysis:   w.currentAnalysisID,
		AnalysesProcessed: w.analysesProcessed,
		LastActivity:      w.lastActivity,
	}
}
