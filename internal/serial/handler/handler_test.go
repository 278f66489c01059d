package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"labcert/internal/sequence"
	"labcert/internal/serial"
	"labcert/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router *chi.Mux
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	svc := serial.New(
		serial.NewInMemory(),
		sequence.NewAllocator(sequence.NewInMemoryCounterStore()),
		serial.WithVerifyBaseURL("https://lab.example.com/verify"),
	)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.router = chi.NewRouter()
	s.router.Group(h.Register)
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

func (s *HandlerSuite) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = testutil.WithPinnedTime(req, s.now)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) BindingResponse {
	var resp BindingResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestAssign() {
	rec := s.do(http.MethodPost, "/lab-results/42/serial")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	binding := s.decode(rec)
	s.Equal(int64(42), binding.LabResultID)
	s.Equal("LAB-2026-00001", binding.Serial)
	s.Equal("https://lab.example.com/verify?token=LAB-2026-00001", binding.QRPayload)
	s.Nil(binding.FirstPrintedAt)

	s.Run("repeat assignment returns the same serial", func() {
		rec := s.do(http.MethodPost, "/lab-results/42/serial")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("LAB-2026-00001", s.decode(rec).Serial)
	})

	s.Run("invalid lab result id", func() {
		rec := s.do(http.MethodPost, "/lab-results/0/serial")
		s.Equal(http.StatusBadRequest, rec.Code)

		rec = s.do(http.MethodPost, "/lab-results/abc/serial")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGet() {
	s.do(http.MethodPost, "/lab-results/42/serial")

	rec := s.do(http.MethodGet, "/lab-results/42/serial")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("LAB-2026-00001", s.decode(rec).Serial)

	s.Run("unassigned lab result", func() {
		rec := s.do(http.MethodGet, "/lab-results/7/serial")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestMarkPrinted() {
	s.do(http.MethodPost, "/lab-results/42/serial")

	rec := s.do(http.MethodPost, "/lab-results/42/serial/printed")
	s.Require().Equal(http.StatusOK, rec.Code)
	binding := s.decode(rec)
	s.Require().NotNil(binding.FirstPrintedAt)
	s.Equal(s.now, binding.FirstPrintedAt.UTC())

	s.Run("reprint keeps the first timestamp", func() {
		rec := s.do(http.MethodPost, "/lab-results/42/serial/printed")
		s.Require().Equal(http.StatusOK, rec.Code)
		got := s.decode(rec)
		s.Require().NotNil(got.FirstPrintedAt)
		s.Equal(s.now, got.FirstPrintedAt.UTC())
	})
}

func (s *HandlerSuite) TestRevoke() {
	s.do(http.MethodPost, "/lab-results/42/serial")

	rec := s.do(http.MethodPost, "/lab-results/42/serial/revoke")
	s.Require().Equal(http.StatusOK, rec.Code)
	binding := s.decode(rec)
	s.True(binding.IsRevoked)
	s.Equal("LAB-2026-00001", binding.Serial, "the serial survives as a tombstone")

	s.Run("unassigned lab result", func() {
		rec := s.do(http.MethodPost, "/lab-results/7/serial/revoke")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}
