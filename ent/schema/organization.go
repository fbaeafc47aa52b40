package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Organization holds the schema definition for the Organization entity.
// Organization is the tenant: every User, Analysis and UsageCounter is owned
// by exactly one org, and every query against tenant data is scoped by org id.
type Organization struct {
	ent.Schema
}

// Fields of the Organization.
func (Organization) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("org_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.Enum("plan").
			Values("free", "pro", "enterprise").
			Default("free"),
		field.Time("plan_cycle_start").
			Default(time.Now).
			Comment("Start of the current billing cycle window used by usage rollover"),
		field.Enum("subscription_status").
			Values("active", "past_due", "canceled").
			Default("active"),
		field.String("stripe_customer_id").
			Optional().
			Nillable().
			Comment("External billing-provider reference; set by the billing webhook"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Organization.
func (Organization) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("users", User.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("analyses", Analysis.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("usage_counters", UsageCounter.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Organization.
func (Organization) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("stripe_customer_id").
			Unique().
			Annotations(entsql.IndexWhere("stripe_customer_id IS NOT NULL")),
	}
}
