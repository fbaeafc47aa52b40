package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Job holds the schema definition for the Job entity — a durable queue
// record. Used directly as the dequeue source in single-node (in-process)
// mode, and as the durable system-of-record alongside the distributed Redis
// Streams backend when one is configured.
type Job struct {
	ent.Schema
}

// Fields of the Job.
func (Job) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("job_id").
			Unique().
			Immutable(),
		field.Enum("job_type").
			Values("run_analysis").
			Default("run_analysis").
			Immutable(),
		field.String("analysis_id").
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.Enum("status").
			Values("queued", "running", "done", "failed").
			Default("queued"),
		field.Int("attempts").
			Default(0),
		field.Int("max_attempts").
			Default(3),
		field.Time("scheduled_at").
			Default(time.Now),
		field.String("last_error").
			Optional().
			Nillable(),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("Worker replica currently holding the claim"),
		field.Time("claimed_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Job.
func (Job) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("analysis", Analysis.Type).
			Ref("jobs").
			Field("analysis_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Job.
func (Job) Indexes() []ent.Index {
	return []ent.Index{
		// Dequeue candidate scan: oldest queued job first.
		index.Fields("status", "scheduled_at"),
		index.Fields("analysis_id"),
	}
}
