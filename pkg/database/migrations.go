package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search on problem_description and
// agent output_text fields — not handled by ent's schema-driven migration.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_analyses_problem_description_gin
		ON analyses USING gin(to_tsvector('english', problem_description))`)
	if err != nil {
		return fmt.Errorf("failed to create problem_description GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_agent_outputs_output_text_gin
		ON agent_outputs USING gin(to_tsvector('english', output_text))`)
	if err != nil {
		return fmt.Errorf("failed to create output_text GIN index: %w", err)
	}

	return nil
}

// CreatePartialUniqueIndexes creates the conditional unique indexes ent's
// schema-driven auto-migration does not express — a partial unique index
// over a nullable column, in this case stripe_customer_id, which must be
// unique only among organizations that actually have one.
func CreatePartialUniqueIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_stripe_customer_id
		ON organizations (stripe_customer_id) WHERE stripe_customer_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("failed to create stripe_customer_id partial unique index: %w", err)
	}

	return nil
}
