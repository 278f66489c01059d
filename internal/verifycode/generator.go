// Package verifycode generates the random tokens printed on documents for
// public authenticity lookups. Codes are 16 characters from a 32-symbol
// uppercase alphabet (80 bits of entropy), enough that enumerating the
// public verification endpoint is infeasible. Global uniqueness is not
// guaranteed here; it is enforced by the document store's unique
// constraint, with the lifecycle service retrying generation a bounded
// number of times on collision.
package verifycode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
)

// Length is the fixed code length.
const Length = 16

// Alphabet excludes the ambiguous 0/O/1/I glyphs so codes survive being
// read aloud or retyped from a printed certificate. 32 symbols also
// divide 256 evenly, so indexing random bytes carries no modulo bias.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MaxAttempts bounds insert-and-retry on code collision.
const MaxAttempts = 5

// ErrExhausted is returned when MaxAttempts collisions occur in a row.
// At 80 bits of entropy this signals a broken store or RNG, not bad luck.
var ErrExhausted = errors.New("verification code space exhausted after bounded retries")

var codePattern = regexp.MustCompile(`^[` + Alphabet + `]{16}$`)

// Generator produces verification codes from crypto/rand.
type Generator struct{}

// New constructs a code generator.
func New() *Generator { return &Generator{} }

// Generate returns one random 16-character code.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// Conforms reports whether s has the shape of a verification code.
// Used by the lookup service to pick the match column.
func Conforms(s string) bool {
	return codePattern.MatchString(s)
}
