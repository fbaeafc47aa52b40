package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UsageCounter holds the schema definition for the UsageCounter entity — a
// per-(org, feature, billing period) monotonically increasing counter.
type UsageCounter struct {
	ent.Schema
}

// Fields of the UsageCounter.
func (UsageCounter) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("usage_counter_id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.Enum("feature").
			Values("analyses_created", "refine_messages_per_analysis").
			Immutable(),
		field.Time("period_start").
			Immutable().
			Comment("Start of the billing cycle this counter belongs to"),
		field.String("analysis_id").
			Optional().
			Nillable().
			Immutable().
			Comment("Set for refine_messages_per_analysis, which is keyed per analysis"),
		field.Int("count").
			Default(0),
	}
}

// Edges of the UsageCounter.
func (UsageCounter) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("org", Organization.Type).
			Ref("usage_counters").
			Field("org_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the UsageCounter.
func (UsageCounter) Indexes() []ent.Index {
	return []ent.Index{
		// analysis_id is part of the identity (NULL for org-level features,
		// set for per-analysis features). Postgres treats NULLs as distinct,
		// so this index does not deduplicate org-level rows such as
		// analyses_created; quota.Engine.CheckAndConsume serializes on the
		// organization row instead.
		index.Fields("org_id", "feature", "period_start", "analysis_id").
			Unique(),
	}
}
