package serial

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"labcert/internal/sequence"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store *InMemory
	svc   *Service
	ctx   context.Context
	now   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.svc = New(s.store, sequence.NewAllocator(sequence.NewInMemoryCounterStore()),
		WithVerifyBaseURL("https://lab.example.com/verify"))
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TestAssignSerial() {
	binding, err := s.svc.AssignSerial(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("LAB-2026-00001", binding.Serial)
	s.Equal(2026, binding.Year)
	s.Equal(int64(1), binding.Sequence)
	s.True(binding.IsValid())
	s.Nil(binding.FirstPrintedAt)

	s.Run("assignment is idempotent", func() {
		again, err := s.svc.AssignSerial(s.ctx, 42)
		s.Require().NoError(err)
		s.Equal(binding.Serial, again.Serial)
	})

	s.Run("distinct lab results get distinct serials", func() {
		other, err := s.svc.AssignSerial(s.ctx, 43)
		s.Require().NoError(err)
		s.Equal("LAB-2026-00002", other.Serial)
	})

	s.Run("non-positive lab result id is rejected", func() {
		_, err := s.svc.AssignSerial(s.ctx, 0)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestConcurrentAssignsConverge() {
	const goroutines = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials = make(map[string]struct{})
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			binding, err := s.svc.AssignSerial(s.ctx, 42)
			s.Require().NoError(err)
			mu.Lock()
			serials[binding.Serial] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(serials, 1, "every caller must observe the same serial")
}

func (s *ServiceSuite) TestMarkPrintedKeepsFirstTimestamp() {
	_, err := s.svc.AssignSerial(s.ctx, 42)
	s.Require().NoError(err)

	binding, err := s.svc.MarkPrinted(s.ctx, 42)
	s.Require().NoError(err)
	s.Require().NotNil(binding.FirstPrintedAt)
	s.Equal(s.now, *binding.FirstPrintedAt)

	// A reprint an hour later does not move the first-print time.
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	binding, err = s.svc.MarkPrinted(later, 42)
	s.Require().NoError(err)
	s.Equal(s.now, *binding.FirstPrintedAt)

	s.Run("unknown lab result", func() {
		_, err := s.svc.MarkPrinted(s.ctx, 999)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestRevokeIsATombstone() {
	assigned, err := s.svc.AssignSerial(s.ctx, 42)
	s.Require().NoError(err)

	binding, err := s.svc.Revoke(s.ctx, 42)
	s.Require().NoError(err)
	s.True(binding.IsRevoked)
	s.False(binding.IsValid())
	s.Equal(assigned.Serial, binding.Serial, "the serial persists as an audit record")

	s.Run("the binding is still retrievable", func() {
		got, err := s.svc.GetBinding(s.ctx, 42)
		s.Require().NoError(err)
		s.True(got.IsRevoked)
	})

	s.Run("a new assignment for the same result returns the tombstone", func() {
		got, err := s.svc.AssignSerial(s.ctx, 42)
		s.Require().NoError(err)
		s.Equal(assigned.Serial, got.Serial)
		s.True(got.IsRevoked)
	})
}

func (s *ServiceSuite) TestGetBindingNotFound() {
	_, err := s.svc.GetBinding(s.ctx, 42)
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestQRPayload() {
	binding := &Binding{LabResultID: 42, Serial: "LAB-2026-00001"}
	s.Equal("https://lab.example.com/verify?token=LAB-2026-00001", s.svc.QRPayload(binding))

	s.Run("defaults to a relative path", func() {
		svc := New(s.store, sequence.NewAllocator(sequence.NewInMemoryCounterStore()))
		s.Equal("/verify?token=LAB-2026-00001", svc.QRPayload(binding))
	})

	s.Run("token is query-escaped", func() {
		odd := &Binding{Serial: "LAB 2026&00001"}
		s.Equal("https://lab.example.com/verify?token=LAB+2026%2600001", s.svc.QRPayload(odd))
	})
}
