package serial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	txcontext "labcert/pkg/platform/tx"
	"labcert/pkg/requestcontext"
)

// Postgres persists serial bindings. lab_result_id is the primary key
// and the serial column carries a unique constraint, making AssignSerial
// race-safe across instances.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed binding store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const bindingColumns = `lab_result_id, serial, year, sequence, first_printed_at, is_revoked, created_at`

// Create inserts a binding.
func (s *Postgres) Create(ctx context.Context, b *Binding) error {
	query := `
		INSERT INTO lab_serials (` + bindingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		int64(b.LabResultID), b.Serial, b.Year, b.Sequence, b.FirstPrintedAt, b.IsRevoked, b.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create serial binding: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create serial binding: %w", err)
	}
	return nil
}

// FindByLabResult returns the binding for a lab result.
func (s *Postgres) FindByLabResult(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	query := `SELECT ` + bindingColumns + ` FROM lab_serials WHERE lab_result_id = $1`
	return scanBinding(s.conn(ctx).QueryRowContext(ctx, query, int64(labResultID)))
}

// FindBySerial resolves a serial case-insensitively.
func (s *Postgres) FindBySerial(ctx context.Context, serial string) (*Binding, error) {
	query := `SELECT ` + bindingColumns + ` FROM lab_serials WHERE upper(serial) = $1`
	return scanBinding(s.conn(ctx).QueryRowContext(ctx, query, strings.ToUpper(serial)))
}

// MarkPrinted sets the first-print timestamp only if unset, in a single
// statement so concurrent prints cannot both write it.
func (s *Postgres) MarkPrinted(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE lab_serials SET first_printed_at = $2 WHERE lab_result_id = $1 AND first_printed_at IS NULL`,
		int64(labResultID), requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("mark serial printed: %w", err)
	}
	return s.FindByLabResult(ctx, labResultID)
}

// Revoke sets the tombstone flag.
func (s *Postgres) Revoke(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE lab_serials SET is_revoked = TRUE WHERE lab_result_id = $1`, int64(labResultID))
	if err != nil {
		return nil, fmt.Errorf("revoke serial: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByLabResult(ctx, labResultID)
}

func scanBinding(row *sql.Row) (*Binding, error) {
	var (
		b    Binding
		lrID int64
	)
	err := row.Scan(&lrID, &b.Serial, &b.Year, &b.Sequence, &b.FirstPrintedAt, &b.IsRevoked, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan serial binding: %w", err)
	}
	b.LabResultID = id.LabResultID(lrID)
	return &b, nil
}
