// Package sequence produces unique, monotonic-per-(kind, year) integers
// for formatted document numbers. The counter itself lives in the store;
// allocation is a single atomic increment so concurrent callers, even in
// separate process instances, always observe distinct values. Gaps are acceptable,
// duplicates are not.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"labcert/internal/document/models"
)

// MaxPerYear is the format ceiling: numbers are zero-padded to five
// digits, so a (kind, year) scope holds at most 99999 documents.
const MaxPerYear = 99999

// ErrExhausted is returned when a (kind, year) counter passes the format
// ceiling. Surfaced instead of widening the padded field so issued
// numbers keep a stable shape.
var ErrExhausted = errors.New("sequence exhausted for kind and year")

// CounterStore advances a (kind, year) counter atomically.
// Implementations must guarantee N concurrent Next calls return N
// distinct integers.
type CounterStore interface {
	Next(ctx context.Context, kind models.Kind, year int) (int64, error)
}

// Allocator hands out formatted sequence positions.
type Allocator struct {
	counters CounterStore
}

// NewAllocator constructs an allocator over the given counter store.
func NewAllocator(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate returns the next sequence number for (kind, year).
// Fails ErrExhausted past MaxPerYear.
func (a *Allocator) Allocate(ctx context.Context, kind models.Kind, year int) (int64, error) {
	n, err := a.counters.Next(ctx, kind, year)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence %s/%d: %w", kind, year, err)
	}
	if n > MaxPerYear {
		return 0, fmt.Errorf("allocate sequence %s/%d: %w", kind, year, ErrExhausted)
	}
	return n, nil
}

// Format renders a formatted document number, e.g. CAL-2026-00001.
func Format(kind models.Kind, year int, n int64) string {
	return fmt.Sprintf("%s-%04d-%05d", kind.Prefix(), year, n)
}
