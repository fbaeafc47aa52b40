package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Analysis holds the schema definition for the Analysis entity — the unit
// of work run through the agent orchestrator.
type Analysis struct {
	ent.Schema
}

// Fields of the Analysis.
func (Analysis) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("analysis_id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.String("creator_user_id").
			Immutable(),
		field.Text("problem_description").
			Comment("20-8000 chars, validated at the API boundary"),
		field.Enum("business_type").
			Values("b2b_saas", "b2c_saas", "marketplace", "ecommerce", "retail", "fintech", "healthtech", "other"),
		field.Enum("depth").
			Values("fast", "standard", "deep").
			Default("standard"),
		field.Enum("status").
			Values("pending", "running", "completed", "failed").
			Default("pending"),
		field.Bool("partial_failure").
			Default(false).
			Comment("Reviewer completed but at least one other agent did not"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Int("total_input_tokens").
			Default(0),
		field.Int("total_output_tokens").
			Default(0),
		field.Int("total_tokens").
			Default(0),
		field.Float("total_cost").
			Default(0),
		field.Int("total_latency_ms").
			Default(0),
		field.String("error_message").
			Optional().
			Nillable(),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("Worker replica that claimed the backing job; used by the orphan sweep"),
		field.Time("last_heartbeat_at").
			Optional().
			Nillable().
			Comment("Updated periodically by the claiming worker while running"),
	}
}

// Edges of the Analysis.
func (Analysis) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("org", Organization.Type).
			Ref("analyses").
			Field("org_id").
			Unique().
			Required().
			Immutable(),
		edge.To("agent_outputs", AgentOutput.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("refine_messages", RefineMessage.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("jobs", Job.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Analysis.
func (Analysis) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "created_at"),
		index.Fields("org_id", "status"),
		// Orphan detection sweep: in-flight analyses with a stale heartbeat.
		index.Fields("status", "last_heartbeat_at"),
	}
}
