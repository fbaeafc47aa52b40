package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RefineMessage holds the schema definition for the RefineMessage entity —
// one entry in a per-analysis refinement chat.
type RefineMessage struct {
	ent.Schema
}

// Fields of the RefineMessage.
func (RefineMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("refine_message_id").
			Unique().
			Immutable(),
		field.String("analysis_id").
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.Enum("role").
			Values("user", "assistant").
			Immutable(),
		field.Text("content"),
		field.Int("input_tokens").
			Optional().
			Nillable().
			Comment("Assistant rows only"),
		field.Int("output_tokens").
			Optional().
			Nillable().
			Comment("Assistant rows only"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the RefineMessage.
func (RefineMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("analysis", Analysis.Type).
			Ref("refine_messages").
			Field("analysis_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the RefineMessage.
func (RefineMessage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("analysis_id", "created_at"),
	}
}
