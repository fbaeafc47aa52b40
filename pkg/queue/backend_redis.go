package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/redis/go-redis/v9"
)

const (
	streamKey        = "insightforge:jobs"
	consumerGroup    = "analysis-workers"
	claimBlockPeriod = 2 * time.Second
)

// RedisStreamsBackend is the distributed Job queue: producers XADD a
// job id to the stream, consumers XREADGROUP it under a shared consumer
// group, and any entry left unacknowledged past processingTimeout is
// reclaimed via XAUTOCLAIM — the Streams analogue of a visibility timeout.
type RedisStreamsBackend struct {
	rdb               *redis.Client
	analysisSvc       *services.AnalysisService
	processingTimeout time.Duration
}

// NewRedisStreamsBackend connects to redisURL and ensures the consumer
// group exists (creating the stream if it doesn't exist yet).
func NewRedisStreamsBackend(ctx context.Context, redisURL string, analysisSvc *services.AnalysisService, processingTimeout time.Duration) (*RedisStreamsBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	if err := rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "0").Err(); err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("queue: create consumer group: %w", err)
	}

	return &RedisStreamsBackend{rdb: rdb, analysisSvc: analysisSvc, processingTimeout: processingTimeout}, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// Enqueue publishes a job id onto the stream for the consumer group to pick
// up. Called by the API layer right after a job row is committed — the
// in-process backend needs no equivalent since it dequeues from the
// durable table directly.
func (b *RedisStreamsBackend) Enqueue(ctx context.Context, j *ent.Job) error {
	return b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"job_id": j.ID},
	}).Err()
}

// Claim reads one new message for podID, falling back to reclaiming a
// stale pending entry via XAUTOCLAIM if there is no new work.
func (b *RedisStreamsBackend) Claim(ctx context.Context, podID string) (*ent.Job, error) {
	jobID, msgID, err := b.readNew(ctx, podID)
	if err != nil {
		return nil, err
	}
	if jobID == "" {
		jobID, msgID, err = b.reclaimStale(ctx, podID)
		if err != nil {
			return nil, err
		}
	}
	if jobID == "" {
		return nil, nil
	}

	j, err := b.analysisSvc.ClaimJobByID(ctx, jobID, podID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		// Another consumer already transitioned this job (e.g. recovered
		// from a previous crash via the startup sweep) — ack it away so
		// it doesn't keep reappearing in XAUTOCLAIM.
		_ = b.rdb.XAck(ctx, streamKey, consumerGroup, msgID).Err()
		return nil, nil
	}

	return j, nil
}

func (b *RedisStreamsBackend) readNew(ctx context.Context, podID string) (jobID, msgID string, err error) {
	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: podID,
		Streams:  []string{streamKey, ">"},
		Count:    1,
		Block:    claimBlockPeriod,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("queue: xreadgroup: %w", err)
	}
	for _, s := range streams {
		for _, msg := range s.Messages {
			if id, ok := msg.Values["job_id"].(string); ok {
				return id, msg.ID, nil
			}
		}
	}
	return "", "", nil
}

func (b *RedisStreamsBackend) reclaimStale(ctx context.Context, podID string) (jobID, msgID string, err error) {
	msgs, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey,
		Group:    consumerGroup,
		Consumer: podID,
		MinIdle:  b.processingTimeout,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("queue: xautoclaim: %w", err)
	}
	for _, msg := range msgs {
		if id, ok := msg.Values["job_id"].(string); ok {
			return id, msg.ID, nil
		}
	}
	return "", "", nil
}

// Ack acknowledges the stream entry for a successfully processed job.
func (b *RedisStreamsBackend) Ack(ctx context.Context, jobID string) error {
	return b.ackByJobID(ctx, jobID)
}

// Nack acknowledges the stream entry too, so the message leaves the
// pending entries list either way. The job is not re-queued and its
// attempts/max_attempts are not consulted; CompleteAnalysis's status
// update is what actually records the failure.
func (b *RedisStreamsBackend) Nack(ctx context.Context, jobID string, reason string) error {
	return b.ackByJobID(ctx, jobID)
}

// ackByJobID scans pending entries for the message carrying jobID and acks
// it. Pending-entry lists are per-consumer and small (bounded by
// in-flight concurrency), so a linear scan here is cheap.
func (b *RedisStreamsBackend) ackByJobID(ctx context.Context, jobID string) error {
	pending, err := b.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey,
		Group:  consumerGroup,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: xpending: %w", err)
	}

	for _, p := range pending {
		msgs, err := b.rdb.XRange(ctx, streamKey, p.ID, p.ID).Result()
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if id, ok := m.Values["job_id"].(string); ok && id == jobID {
				return b.rdb.XAck(ctx, streamKey, consumerGroup, m.ID).Err()
			}
		}
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (b *RedisStreamsBackend) Close() error {
	return b.rdb.Close()
}
