package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreImpl implements store.TaskStore using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

// NewTaskStore creates a PostgreSQL-backed task store and ensures the schema
// is in place.
func NewTaskStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &StoreImpl{db: dbpool}
	if err := s.ensureSchema(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *StoreImpl) Close() {
	s.db.Close()
}

// schema holds the tasks table plus the two indexes the read paths depend
// on: a sparse unique index making idempotency tokens unique when present,
// and a compound index for filtered recency-ordered listing.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                UUID PRIMARY KEY,
	status            TEXT NOT NULL,
	price             INTEGER NOT NULL,
	source_location   TEXT NOT NULL,
	outputs           JSONB NOT NULL DEFAULT '[]'::jsonb,
	failure_reason    TEXT,
	idempotency_token TEXT,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tasks_idempotency_token_key
	ON tasks (idempotency_token) WHERE idempotency_token IS NOT NULL;
CREATE INDEX IF NOT EXISTS tasks_status_created_at_idx
	ON tasks (status, created_at DESC);
`

func (s *StoreImpl) ensureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure tasks schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
