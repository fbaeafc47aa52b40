package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightlane/insightforge/pkg/services"
)

// runOrphanDetection ticks at OrphanDetectionInterval, recovering any
// analysis whose claiming worker went silent — crashed, OOM-killed, or
// network-partitioned — without ever updating last_heartbeat_at again.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := detectAndRecoverOrphans(ctx, p.analysisSvc, p.config.OrphanThreshold)
			if err == nil {
				p.orphans.recordScan(recovered)
			}
		}
	}
}

// detectAndRecoverOrphans finds every running analysis whose heartbeat has
// gone stale past threshold and marks each one failed.
func detectAndRecoverOrphans(ctx context.Context, analysisSvc *services.AnalysisService, threshold time.Duration) (int, error) {
	orphaned, err := analysisSvc.FindOrphanedAnalyses(ctx, threshold)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, a := range orphaned {
		if err := analysisSvc.MarkOrphanFailed(ctx, a.ID); err != nil {
			continue
		}
		recovered++
	}
	if recovered > 0 {
		slog.Warn("worker_sweep_reclaimed", "count", recovered, "threshold", threshold)
	}
	return recovered, nil
}

// CleanupStartupOrphans runs once at process boot, before the pool starts
// polling, to recover any analysis left running by a previous instance of
// this same pod (a crash mid-run leaves no other signal that it's gone).
func CleanupStartupOrphans(ctx context.Context, analysisSvc *services.AnalysisService, podID string) (int, error) {
	// A fresh restart makes every analysis this pod previously claimed
	// stale by definition, regardless of how recently it last
	// heartbeated — so the startup sweep uses a zero threshold scoped to
	// this pod rather than OrphanThreshold.
	orphaned, err := analysisSvc.FindOrphanedAnalyses(ctx, 0)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, a := range orphaned {
		if a.PodID == nil || *a.PodID != podID {
			continue
		}
		if err := analysisSvc.MarkOrphanFailed(ctx, a.ID); err != nil {
			continue
		}
		recovered++
	}
	if recovered > 0 {
		slog.Warn("worker_sweep_reclaimed", "count", recovered, "pod_id", podID, "startup", true)
	}
	return recovered, nil
}
