package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	txcontext "labcert/pkg/platform/tx"
)

// Constraint names from migrations/001_init.sql. Create maps 23505
// violations back to typed conflicts by constraint.
const (
	constraintNumber = "documents_formatted_number_key"
	constraintCode   = "documents_verification_code_key"
	constraintSource = "documents_live_source_idx"
)

// Postgres persists documents in PostgreSQL. Uniqueness lives in the
// schema: a unique index on upper(formatted_number), a unique constraint
// on verification_code, and a partial unique index on
// (kind, source_kind, source_id) WHERE NOT is_revoked.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
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

const documentColumns = `id, kind, formatted_number, verification_code, source_kind, source_id,
	template_id, status, issued_at, valid_until, generated_by, approved_by, approved_at,
	is_revoked, revoked_reason, revoked_at, artifact_ref, fields`

// Create inserts a document. The schema's unique constraints are the
// backstop against two concurrent issuance requests both passing the
// service-level duplicate check.
func (s *Postgres) Create(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	var approvedBy any
	if d.ApprovedBy != nil {
		approvedBy = uuid.UUID(*d.ApprovedBy)
	}
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode document fields: %w", err)
	}
	args := []any{
		uuid.UUID(d.ID), string(d.Kind), d.FormattedNumber, d.VerificationCode,
		string(d.Source.Kind), d.Source.ID, uuid.UUID(d.TemplateID), string(d.Status),
		d.IssuedAt, d.ValidUntil, uuid.UUID(d.GeneratedBy), approvedBy, d.ApprovedAt,
		d.IsRevoked, d.RevokedReason, d.RevokedAt, d.ArtifactRef, fields,
	}
	if tx, ok := txcontext.From(ctx); ok {
		err = insertInSavepoint(ctx, tx, query, args)
	} else {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("create document: %w", mapConflict(err))
	}
	return nil
}

// insertInSavepoint runs the insert inside the caller's transaction. A
// unique violation aborts a Postgres transaction outright, so the insert
// is guarded by a savepoint: rolling back to it keeps the surrounding
// issuance transaction usable when the caller retries a code collision
// with a fresh code.
func insertInSavepoint(ctx context.Context, tx *sql.Tx, query string, args []any) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT insert_document"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT insert_document"); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT insert_document"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// FindByID returns a document by ID.
func (s *Postgres) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(docID)))
}

// FindByNumber matches a formatted number case-insensitively.
func (s *Postgres) FindByNumber(ctx context.Context, number string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE upper(formatted_number) = $1`
	return scanOne(s.conn(ctx).QueryRowContext(ctx, query, strings.ToUpper(number)))
}

// FindByCode matches a verification code case-sensitively.
func (s *Postgres) FindByCode(ctx context.Context, code string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE verification_code = $1`
	return scanOne(s.conn(ctx).QueryRowContext(ctx, query, code))
}

// FindLiveBySource returns the non-revoked document for a source, if any.
func (s *Postgres) FindLiveBySource(ctx context.Context, kind models.Kind, source models.SourceRef) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE kind = $1 AND source_kind = $2 AND source_id = $3 AND NOT is_revoked`
	return scanOne(s.conn(ctx).QueryRowContext(ctx, query, string(kind), string(source.Kind), source.ID))
}

// Execute loads the document FOR UPDATE, runs validate then mutate, and
// writes the mutable columns back, all inside one transaction. Keeps the
// validate-then-mutate window closed against concurrent transitions.
func (s *Postgres) Execute(
	ctx context.Context,
	docID id.DocumentID,
	validate func(*models.Document) error,
	mutate func(*models.Document),
) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin document update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, uuid.UUID(docID))
	d, err := scanOne(row)
	if err != nil {
		return nil, err
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	mutate(d)

	var approvedBy any
	if d.ApprovedBy != nil {
		approvedBy = uuid.UUID(*d.ApprovedBy)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET
			status = $2, approved_by = $3, approved_at = $4,
			is_revoked = $5, revoked_reason = $6, revoked_at = $7, artifact_ref = $8
		WHERE id = $1
	`, uuid.UUID(d.ID), string(d.Status), approvedBy, d.ApprovedAt,
		d.IsRevoked, d.RevokedReason, d.RevokedAt, d.ArtifactRef)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document update: %w", err)
	}
	return d, nil
}

// SetArtifactRef records the rendered artifact location.
func (s *Postgres) SetArtifactRef(ctx context.Context, docID id.DocumentID, ref string) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE documents SET artifact_ref = $2 WHERE id = $1`, uuid.UUID(docID), ref)
	if err != nil {
		return fmt.Errorf("set artifact ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByKind returns documents of a kind ordered by issue time.
func (s *Postgres) ListByKind(ctx context.Context, kind models.Kind) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE kind = $1 ORDER BY issued_at`
	rows, err := s.conn(ctx).QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count reports the total number of stored documents.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Document, error) {
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return d, err
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		d                     models.Document
		docID, tmplID, genBy  uuid.UUID
		kind, srcKind, status string
		approvedBy            uuid.NullUUID
		fields                []byte
	)
	err := row.Scan(&docID, &kind, &d.FormattedNumber, &d.VerificationCode,
		&srcKind, &d.Source.ID, &tmplID, &status, &d.IssuedAt, &d.ValidUntil,
		&genBy, &approvedBy, &d.ApprovedAt, &d.IsRevoked, &d.RevokedReason,
		&d.RevokedAt, &d.ArtifactRef, &fields)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &d.Fields); err != nil {
			return nil, fmt.Errorf("decode document fields: %w", err)
		}
	}
	d.ID = id.DocumentID(docID)
	d.Kind = models.Kind(kind)
	d.Source.Kind = models.SourceKind(srcKind)
	d.TemplateID = id.TemplateID(tmplID)
	d.Status = models.Status(status)
	d.GeneratedBy = id.UserID(genBy)
	if approvedBy.Valid {
		u := id.UserID(approvedBy.UUID)
		d.ApprovedBy = &u
	}
	return &d, nil
}

// mapConflict translates a 23505 unique violation into the typed conflict
// for its constraint; other errors pass through unchanged.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch pqErr.Constraint {
	case constraintSource:
		return ErrDuplicateSource
	case constraintCode:
		return ErrCodeTaken
	case constraintNumber:
		return ErrNumberTaken
	default:
		return sentinel.ErrConflict
	}
}
