package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/organization"
	"github.com/brightlane/insightforge/ent/usagecounter"
	"github.com/google/uuid"
)

// cyclePeriod is the fixed window length every plan's quota cycle uses.
const cyclePeriod = 30 * 24 * time.Hour

// CurrentPeriodStart returns the most recent cycle boundary on or before now,
// anchored at cycleStart. The cycle rolls over lazily: there is no
// background job, just this computation re-run on every check.
func CurrentPeriodStart(cycleStart, now time.Time) time.Time {
	if now.Before(cycleStart) {
		return cycleStart
	}
	elapsed := now.Sub(cycleStart)
	cycles := int64(elapsed / cyclePeriod)
	return cycleStart.Add(time.Duration(cycles) * cyclePeriod)
}

// Result is the outcome of one CheckAndConsume call.
type Result struct {
	Allowed           bool
	Used              int
	Limit             int
	Remaining         int
	UpgradeSuggestion string
}

// Engine runs the transactional check-and-consume operation against the
// UsageCounter table.
type Engine struct {
	client *ent.Client
}

func NewEngine(client *ent.Client) *Engine {
	return &Engine{client: client}
}

// CheckAndConsume atomically reads the counter for (org, feature, cycle[,
// key]), compares it to the plan's limit, and if within limit increments it
// and returns Allowed. Unbounded (-1) limits always return Allowed without
// touching the counter row. Must be called before any LLM call is made for
// the unit of work it gates — partial work never burns quota retroactively.
func (e *Engine) CheckAndConsume(ctx context.Context, org *ent.Organization, feature Feature, key *string) (*Result, error) {
	limits, ok := LimitsFor(Plan(org.Plan))
	if !ok {
		return nil, fmt.Errorf("quota: unknown plan %q", org.Plan)
	}

	limit := limits.limitFor(feature)
	if limit == Unbounded {
		return &Result{Allowed: true, Limit: Unbounded, Remaining: Unbounded}, nil
	}

	periodStart := CurrentPeriodStart(org.PlanCycleStart, time.Now())

	tx, err := e.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the org row so concurrent calls for one org serialize even when
	// the counter row does not exist yet (FOR UPDATE below then locks nothing).
	if _, err := tx.Organization.Query().Where(organization.IDEQ(org.ID)).ForUpdate().Only(ctx); err != nil {
		return nil, fmt.Errorf("quota: lock org: %w", err)
	}

	q := tx.UsageCounter.Query().Where(
		usagecounter.OrgIDEQ(org.ID),
		usagecounter.FeatureEQ(usagecounter.Feature(feature)),
		usagecounter.PeriodStartEQ(periodStart),
	)
	if key != nil {
		q = q.Where(usagecounter.AnalysisIDEQ(*key))
	} else {
		q = q.Where(usagecounter.AnalysisIDIsNil())
	}

	counter, err := q.ForUpdate().Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return nil, fmt.Errorf("quota: load counter: %w", err)
	}

	used := 0
	if counter != nil {
		used = counter.Count
	}

	if used >= limit {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("quota: commit: %w", err)
		}
		slog.Warn("quota_denied", "org_id", org.ID, "feature", feature, "used", used, "limit", limit)
		return &Result{
			Allowed:           false,
			Used:              used,
			Limit:             limit,
			Remaining:         0,
			UpgradeSuggestion: upgradeSuggestion(Plan(org.Plan)),
		}, nil
	}

	if counter == nil {
		create := tx.UsageCounter.Create().
			SetID(uuid.NewString()).
			SetOrgID(org.ID).
			SetFeature(usagecounter.Feature(feature)).
			SetPeriodStart(periodStart).
			SetCount(1)
		if key != nil {
			create = create.SetAnalysisID(*key)
		}
		if _, err := create.Save(ctx); err != nil {
			return nil, fmt.Errorf("quota: create counter: %w", err)
		}
	} else {
		if _, err := tx.UsageCounter.UpdateOne(counter).AddCount(1).Save(ctx); err != nil {
			return nil, fmt.Errorf("quota: increment counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("quota: commit: %w", err)
	}

	used++
	return &Result{Allowed: true, Used: used, Limit: limit, Remaining: limit - used}, nil
}
