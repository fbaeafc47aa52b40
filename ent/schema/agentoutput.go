package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentOutput holds the schema definition for the AgentOutput entity — one
// row per agent per analysis.
type AgentOutput struct {
	ent.Schema
}

// Fields of the AgentOutput.
func (AgentOutput) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("agent_output_id").
			Unique().
			Immutable(),
		field.String("analysis_id").
			Immutable(),
		field.String("agent_name").
			Immutable().
			Comment("analyst | commercial | market | financial | reviewer"),
		field.Text("output_text").
			Optional().
			Comment("May be empty on failure"),
		field.Enum("status").
			Values("pending", "running", "completed", "failed", "timeout", "skipped").
			Default("pending"),
		field.Int("input_tokens").
			Default(0),
		field.Int("output_tokens").
			Default(0),
		field.Int("total_tokens").
			Default(0),
		field.Float("cost").
			Default(0),
		field.Int("latency_ms").
			Default(0),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the AgentOutput.
func (AgentOutput) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("analysis", Analysis.Type).
			Ref("agent_outputs").
			Field("analysis_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the AgentOutput.
func (AgentOutput) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("analysis_id", "agent_name").
			Unique(),
	}
}
