package sequence

import (
	"context"
	"database/sql"
	"fmt"

	"labcert/internal/document/models"
	txcontext "labcert/pkg/platform/tx"
)

// PostgresCounterStore advances counters with a single upsert-increment
// statement. The row lock taken by ON CONFLICT DO UPDATE serializes
// concurrent allocations for the same (kind, year) without any
// application-level retry loop, and RETURNING keeps it to one round trip.
type PostgresCounterStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB) *PostgresCounterStore {
	return &PostgresCounterStore{db: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresCounterStore) querier(ctx context.Context) rowQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Next atomically increments and returns the (kind, year) counter.
func (s *PostgresCounterStore) Next(ctx context.Context, kind models.Kind, year int) (int64, error) {
	query := `
		INSERT INTO sequence_counters (kind, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year) DO UPDATE SET
			last_value = sequence_counters.last_value + 1
		RETURNING last_value
	`
	var n int64
	if err := s.querier(ctx).QueryRowContext(ctx, query, string(kind), year).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment sequence counter: %w", err)
	}
	return n, nil
}
