// Package verification answers public authenticity lookups. It is
// read-only, safe for unauthenticated callers, and returns only the
// public projection of a document, never internal ids or source
// references.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"labcert/internal/document/models"
	"labcert/internal/serial"
	"labcert/internal/verifycode"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "labcert_verification_lookups_total",
	Help: "Public verification lookups, by outcome",
}, []string{"outcome"})

var numberPattern = regexp.MustCompile(`^[A-Za-z]+-\d{4}-\d{5}$`)

// DocumentFinder is the read surface lookups need.
type DocumentFinder interface {
	FindByNumber(ctx context.Context, number string) (*models.Document, error)
	FindByCode(ctx context.Context, code string) (*models.Document, error)
}

// IssuerDirectory resolves staff IDs to display names for the public
// projection. Backed by the surrounding LIMS user directory.
type IssuerDirectory interface {
	DisplayName(ctx context.Context, userID id.UserID) (string, error)
}

// SerialFinder resolves lab-result serials that were bound without a
// full document issuance. Serials and lab-result documents draw from the
// same sequence counter, so a number-shaped token matches at most one of
// the two stores.
type SerialFinder interface {
	FindBySerial(ctx context.Context, serial string) (*serial.Binding, error)
}

// NegativeCache remembers tokens that recently resolved to nothing, so
// repeated probing of dead tokens does not reach the store. Hits are
// never cached: validity must reflect a revocation immediately. Only
// code-shaped tokens are remembered; formatted numbers are predictable,
// and caching a miss for one just before it is issued would hide the
// fresh document for the TTL.
type NegativeCache interface {
	IsMiss(ctx context.Context, token string) (bool, error)
	RememberMiss(ctx context.Context, token string) error
}

// Record is the public projection of a document. Deliberately excludes
// internal ids and source references.
type Record struct {
	Number     string     `json:"number"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	IssuedAt   time.Time  `json:"issued_at"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Issuer     string     `json:"issuer,omitempty"`
	Valid      bool       `json:"valid"`
}

// Result is a lookup outcome. Found=false is the explicit NotFound case,
// distinct from a server error.
type Result struct {
	Found  bool    `json:"found"`
	Record *Record `json:"record,omitempty"`
}

// Service performs lookups.
type Service struct {
	documents DocumentFinder
	directory IssuerDirectory
	serials   SerialFinder
	cache     NegativeCache
	logger    *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithNegativeCache attaches a miss cache (typically Redis-backed).
func WithNegativeCache(c NegativeCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithSerialFinder enables lookups of bare lab-result serials.
func WithSerialFinder(f SerialFinder) Option {
	return func(s *Service) { s.serials = f }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the verification service.
func New(documents DocumentFinder, directory IssuerDirectory, opts ...Option) *Service {
	s := &Service{documents: documents, directory: directory, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup matches token against formatted numbers (case-insensitive) or
// verification codes (case-sensitive) and reports validity.
func (s *Service) Lookup(ctx context.Context, token string) (*Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, derrors.New(derrors.CodeValidation, "token is required")
	}

	if s.cache != nil {
		if miss, err := s.cache.IsMiss(ctx, token); err == nil && miss {
			lookupsTotal.WithLabelValues("not_found_cached").Inc()
			return &Result{Found: false}, nil
		}
	}

	now := requestcontext.Now(ctx)
	doc, err := s.find(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) && s.serials != nil && numberPattern.MatchString(token) {
		if binding, serialErr := s.serials.FindBySerial(ctx, strings.ToUpper(token)); serialErr == nil {
			record := projectSerial(binding)
			lookupsTotal.WithLabelValues(outcomeLabel(record.Valid)).Inc()
			return &Result{Found: true, Record: record}, nil
		} else if !errors.Is(serialErr, sentinel.ErrNotFound) {
			lookupsTotal.WithLabelValues("error").Inc()
			return nil, derrors.Wrap(serialErr, derrors.CodeInternal, "lookup failed")
		}
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		if s.cache != nil && !numberPattern.MatchString(token) {
			if cacheErr := s.cache.RememberMiss(ctx, token); cacheErr != nil {
				s.logger.Warn("failed to cache lookup miss", "error", cacheErr)
			}
		}
		lookupsTotal.WithLabelValues("not_found").Inc()
		return &Result{Found: false}, nil
	}
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, derrors.Wrap(err, derrors.CodeInternal, "lookup failed")
	}

	record := s.project(ctx, doc, now)
	lookupsTotal.WithLabelValues(outcomeLabel(record.Valid)).Inc()
	return &Result{Found: true, Record: record}, nil
}

func outcomeLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

func projectSerial(b *serial.Binding) *Record {
	status := "issued"
	if b.IsRevoked {
		status = "revoked"
	}
	return &Record{
		Number:   b.Serial,
		Kind:     models.KindLabResult.String(),
		Status:   status,
		IssuedAt: b.CreatedAt,
		Valid:    b.IsValid(),
	}
}

func (s *Service) find(ctx context.Context, token string) (*models.Document, error) {
	if numberPattern.MatchString(token) {
		return s.documents.FindByNumber(ctx, token)
	}
	if verifycode.Conforms(token) {
		return s.documents.FindByCode(ctx, token)
	}
	return nil, sentinel.ErrNotFound
}

func (s *Service) project(ctx context.Context, doc *models.Document, now time.Time) *Record {
	status := doc.Status.String()
	if doc.Status == models.StatusIssued && doc.IsExpired(now) {
		status = "expired"
	}
	record := &Record{
		Number:     doc.FormattedNumber,
		Kind:       doc.Kind.String(),
		Status:     status,
		IssuedAt:   doc.IssuedAt,
		ValidUntil: doc.ValidUntil,
		Valid:      doc.IsValid(now),
	}
	if s.directory != nil {
		if name, err := s.directory.DisplayName(ctx, doc.GeneratedBy); err == nil {
			record.Issuer = name
		}
	}
	return record
}
