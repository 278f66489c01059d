//go:build integration

package document_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"labcert/internal/document/models"
	docstore "labcert/internal/document/store/document"
	"labcert/internal/document/store/template"
	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	txcontext "labcert/pkg/platform/tx"
	"labcert/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *docstore.Postgres
	templates  *template.Postgres
	templateID id.TemplateID
	now        time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = docstore.NewPostgres(s.postgres.DB)
	s.templates = template.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.postgres.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "documents", "document_templates"))

	// Documents reference a template row.
	tmpl, err := models.NewTemplate(id.NewTemplateID(), models.KindCalibration, "default",
		"Certificate {{number}}", 1, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.templates.Create(ctx, tmpl))
	s.templateID = tmpl.ID
}

func (s *PostgresStoreSuite) newDoc(number, code string, sourceID int64) *models.Document {
	doc, err := models.NewDocument(
		id.NewDocumentID(),
		models.KindCalibration,
		number,
		code,
		models.SourceRef{Kind: models.SourceCalibrationRecord, ID: sourceID},
		s.templateID,
		id.NewUserID(),
		models.StatusIssued,
		s.now,
		map[string]string{"instrument": "scale-7"},
	)
	s.Require().NoError(err)
	return doc
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	doc := s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)
	s.Require().NoError(s.store.Create(ctx, doc))

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.FormattedNumber, got.FormattedNumber)
	s.Equal(doc.VerificationCode, got.VerificationCode)
	s.Equal(doc.Source, got.Source)
	s.Equal(map[string]string{"instrument": "scale-7"}, got.Fields)
	s.Require().NotNil(got.ValidUntil)
	s.True(got.ValidUntil.Equal(*doc.ValidUntil))

	s.Run("number match is case-insensitive", func() {
		got, err := s.store.FindByNumber(ctx, "cal-2026-00001")
		s.Require().NoError(err)
		s.Equal(doc.ID, got.ID)
	})

	s.Run("code match is case-sensitive", func() {
		_, err := s.store.FindByCode(ctx, "abcdefghjklmnpqr")
		s.ErrorIs(err, sentinel.ErrNotFound)

		got, err := s.store.FindByCode(ctx, "ABCDEFGHJKLMNPQR")
		s.Require().NoError(err)
		s.Equal(doc.ID, got.ID)
	})
}

func (s *PostgresStoreSuite) TestConstraintMapping() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)))

	s.Run("duplicate number", func() {
		err := s.store.Create(ctx, s.newDoc("cal-2026-00001", "ZZZZZZZZZZZZZZZZ", 2))
		s.ErrorIs(err, docstore.ErrNumberTaken)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("duplicate code", func() {
		err := s.store.Create(ctx, s.newDoc("CAL-2026-00002", "ABCDEFGHJKLMNPQR", 3))
		s.ErrorIs(err, docstore.ErrCodeTaken)
	})

	s.Run("duplicate live source", func() {
		err := s.store.Create(ctx, s.newDoc("CAL-2026-00003", "YYYYYYYYYYYYYYYY", 1))
		s.ErrorIs(err, docstore.ErrDuplicateSource)
	})
}

func (s *PostgresStoreSuite) TestRevocationReleasesSource() {
	ctx := context.Background()
	doc := s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)
	s.Require().NoError(s.store.Create(ctx, doc))

	_, err := s.store.Execute(ctx, doc.ID,
		func(d *models.Document) error { return d.CanRevoke() },
		func(d *models.Document) { d.ApplyRevocation("recalled", s.now) },
	)
	s.Require().NoError(err)

	// The revoked row falls out of the partial index; a replacement for
	// the same source inserts cleanly.
	s.Require().NoError(s.store.Create(ctx, s.newDoc("CAL-2026-00002", "ZZZZZZZZZZZZZZZZ", 1)))

	_, err = s.store.FindLiveBySource(ctx, models.KindCalibration,
		models.SourceRef{Kind: models.SourceCalibrationRecord, ID: 1})
	s.Require().NoError(err)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(2, n, "the revoked row persists as an audit record")
}

func (s *PostgresStoreSuite) TestConcurrentRevokesSingleWinner() {
	ctx := context.Background()
	doc := s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)
	s.Require().NoError(s.store.Create(ctx, doc))

	const goroutines = 20
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, doc.ID,
				func(d *models.Document) error { return d.CanRevoke() },
				func(d *models.Document) { d.ApplyRevocation("concurrent", s.now) },
			)
			switch {
			case err == nil:
				successes.Add(1)
			default:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	// FOR UPDATE serializes the transitions: exactly one transaction sees
	// a revocable document.
	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), rejected.Load())

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.True(got.IsRevoked)
}

func (s *PostgresStoreSuite) TestExecuteUnknownDocument() {
	_, err := s.store.Execute(context.Background(), id.NewDocumentID(),
		func(*models.Document) error { return nil },
		func(*models.Document) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSetArtifactRef() {
	ctx := context.Background()
	doc := s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)
	s.Require().NoError(s.store.Create(ctx, doc))

	s.Require().NoError(s.store.SetArtifactRef(ctx, doc.ID, "s3://artifacts/x"))

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.ArtifactRef)
	s.Equal("s3://artifacts/x", *got.ArtifactRef)

	s.Run("unknown document", func() {
		err := s.store.SetArtifactRef(ctx, id.NewDocumentID(), "s3://artifacts/y")
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

// TestCreateRetriesInsideTransaction exercises the issuance retry path:
// a code collision inside a shared transaction must not poison it, so a
// follow-up insert and reads in the same transaction still succeed.
func (s *PostgresStoreSuite) TestCreateRetriesInsideTransaction() {
	ctx := context.Background()
	existing := s.newDoc("CAL-2026-00001", "ABCDEFGHJKLMNPQR", 1)
	s.Require().NoError(s.store.Create(ctx, existing))

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback() }()
	txCtx := txcontext.WithTx(ctx, tx)

	collision := s.newDoc("CAL-2026-00002", "ABCDEFGHJKLMNPQR", 2)
	err = s.store.Create(txCtx, collision)
	s.Require().ErrorIs(err, docstore.ErrCodeTaken)

	// The transaction must still accept statements after the rollback
	// to the savepoint.
	retry := s.newDoc("CAL-2026-00002", "ZYXWVUTSRQPNMKJH", 2)
	s.Require().NoError(s.store.Create(txCtx, retry))

	_, err = s.store.FindLiveBySource(txCtx, models.KindCalibration,
		models.SourceRef{Kind: models.SourceCalibrationRecord, ID: 2})
	s.Require().NoError(err)

	s.Require().NoError(tx.Commit())

	got, err := s.store.FindByNumber(ctx, "CAL-2026-00002")
	s.Require().NoError(err)
	s.Equal("ZYXWVUTSRQPNMKJH", got.VerificationCode)
}
