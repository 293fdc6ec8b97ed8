package health

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker checks PostgreSQL over its own connection, outside the
// application pool.
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker opens a single-connection database handle for dsn
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresChecker{db: db}, nil
}

// HealthCheck verifies PostgreSQL connectivity and that the schema exists
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	var applied int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if applied == 0 {
		return fmt.Errorf("postgres: no migrations applied")
	}
	return nil
}

// Close closes the checker's connection
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
