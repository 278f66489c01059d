package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	txcontext "labcert/pkg/platform/tx"
	"labcert/pkg/requestcontext"
)

// Postgres persists templates in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed template store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const templateColumns = `id, kind, name, body, version, status, created_at, updated_at`

// Create stores a new template version.
func (s *Postgres) Create(ctx context.Context, t *models.Template) error {
	query := `
		INSERT INTO document_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), string(t.Kind), t.Name, t.Body, t.Version, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create template: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// FindByID returns a template by ID.
func (s *Postgres) FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM document_templates WHERE id = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(templateID)))
}

// FindActiveByKind returns the single active template for a kind.
func (s *Postgres) FindActiveByKind(ctx context.Context, kind models.Kind) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM document_templates WHERE kind = $1 AND status = 'active'`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, string(kind)))
}

// Activate marks the template active and deactivates the previous active
// version of the same kind inside one transaction, so issuance never
// observes zero or two active templates.
func (s *Postgres) Activate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin activate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var kind string
	err = tx.QueryRowContext(ctx,
		`SELECT kind FROM document_templates WHERE id = $1 FOR UPDATE`, uuid.UUID(templateID)).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock template: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE document_templates SET status = 'inactive', updated_at = $2 WHERE kind = $1 AND status = 'active'`,
		kind, now); err != nil {
		return nil, fmt.Errorf("deactivate previous template: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_templates SET status = 'active', updated_at = $2 WHERE id = $1`,
		uuid.UUID(templateID), now); err != nil {
		return nil, fmt.Errorf("activate template: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM document_templates WHERE id = $1`, uuid.UUID(templateID))
	t, err := s.scanOne(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activate: %w", err)
	}
	return t, nil
}

// Deactivate marks the template inactive.
func (s *Postgres) Deactivate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE document_templates SET status = 'inactive', updated_at = $2 WHERE id = $1`,
		uuid.UUID(templateID), requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("deactivate template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, templateID)
}

// ListByKind returns all template versions for a kind.
func (s *Postgres) ListByKind(ctx context.Context, kind models.Kind) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM document_templates WHERE kind = $1 ORDER BY version`
	rows, err := s.conn(ctx).QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Template, error) {
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return t, err
}

func scanTemplate(row scanner) (*models.Template, error) {
	var (
		t    models.Template
		uid  uuid.UUID
		kind string
		st   string
	)
	if err := row.Scan(&uid, &kind, &t.Name, &t.Body, &t.Version, &st, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TemplateID(uid)
	t.Kind = models.Kind(kind)
	t.Status = models.TemplateStatus(st)
	return &t, nil
}

// isUniqueViolation reports whether err is PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
