package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/config"
	"github.com/brightlane/insightforge/pkg/services"
)

// orphanState tracks the worker pool's periodic orphan sweep so Health can
// report it without racing the sweep goroutine.
type orphanState struct {
	mu               sync.Mutex
	lastScan         time.Time
	orphansRecovered int
}

func (o *orphanState) recordScan(recovered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastScan = time.Now()
	o.orphansRecovered += recovered
}

func (o *orphanState) snapshot() (time.Time, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastScan, o.orphansRecovered
}

// WorkerPool owns a fixed number of Worker goroutines that poll the same
// claim source, plus a background goroutine that periodically recovers
// analyses abandoned by a crashed pod.
type WorkerPool struct {
	podID       string
	client      *ent.Client
	config      config.WorkerConfig
	analysisSvc *services.AnalysisService
	runner      AnalysisExecutor
	backend     Backend

	workers []*Worker

	mu             sync.RWMutex
	activeAnalyses map[string]context.CancelFunc
	started        bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	orphans orphanState
}

// NewWorkerPool builds a pool of config.PoolSize workers sharing one
// backend and one analysis runner.
func NewWorkerPool(podID string, client *ent.Client, cfg config.WorkerConfig, analysisSvc *services.AnalysisService, runner AnalysisExecutor, backend Backend) *WorkerPool {
	p := &WorkerPool{
		podID:          podID,
		client:         client,
		config:         cfg,
		analysisSvc:    analysisSvc,
		runner:         runner,
		backend:        backend,
		activeAnalyses: make(map[string]context.CancelFunc),
		stopCh:         make(chan struct{}),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		p.workers = append(p.workers, newWorker(workerID(podID, i), podID, client, cfg, analysisSvc, runner, backend, p))
	}

	return p
}

func workerID(podID string, n int) string {
	return podID + "-worker-" + strconv.Itoa(n)
}

// Start launches every worker goroutine plus the orphan-detection
// goroutine. Idempotent: calling Start twice is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx, p.stopCh)
		}(w)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
}

// Stop signals every worker and the orphan sweep to exit and blocks until
// they do. Safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

// registerAnalysis records the cancel func for an in-flight analysis; the
// registry's size is what ActiveCount reports. Stop does not call these
// cancel funcs — it waits for in-flight runs to return.
func (p *WorkerPool) registerAnalysis(analysisID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeAnalyses[analysisID] = cancel
}

func (p *WorkerPool) unregisterAnalysis(analysisID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeAnalyses, analysisID)
}

// ActiveCount reports how many analyses are currently in flight across
// every worker in the pool — reported by Health.
func (p *WorkerPool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.activeAnalyses)
}

// Health reports the pool's aggregate status plus each worker's own state.
func (p *WorkerPool) Health(ctx context.Context) PoolHealth {
	health := PoolHealth{
		PodID:          p.podID,
		TotalWorkers:   len(p.workers),
		ActiveAnalyses: p.ActiveCount(),
		MaxConcurrent:  p.config.MaxConcurrentAnalyses,
		Backend:        backendName(p.backend),
		IsHealthy:      true,
	}

	if _, err := p.client.Organization.Query().Limit(1).Exist(ctx); err != nil {
		health.DBReachable = false
		health.DBError = err.Error()
		health.IsHealthy = false
	} else {
		health.DBReachable = true
	}

	for _, w := range p.workers {
		stat := w.Health()
		health.WorkerStats = append(health.WorkerStats, stat)
		if stat.Status == "working" {
			health.ActiveWorkers++
		}
	}

	health.LastOrphanScan, health.OrphansRecovered = p.orphans.snapshot()
	return health
}

func backendName(b Backend) string {
	if _, ok := b.(*InProcessBackend); ok {
		return "in-process"
	}
	return "redis-streams"
}
