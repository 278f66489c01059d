package identity

import (
	"golang.org/x/crypto/bcrypt"

	derrors "labcert/pkg/domain-errors"
)

// AdminTokenVerifier checks the shared admin API token against its
// bcrypt hash. Only the hash is configured; the plaintext never touches
// disk or env on the server side.
type AdminTokenVerifier struct {
	hash []byte
}

// NewAdminTokenVerifier wraps a bcrypt hash. An empty hash disables
// admin-token auth entirely.
func NewAdminTokenVerifier(hash string) *AdminTokenVerifier {
	return &AdminTokenVerifier{hash: []byte(hash)}
}

// Enabled reports whether a hash is configured.
func (v *AdminTokenVerifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify compares a presented token against the configured hash.
func (v *AdminTokenVerifier) Verify(token string) error {
	if !v.Enabled() {
		return derrors.New(derrors.CodeUnauthorized, "admin token auth is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return derrors.New(derrors.CodeUnauthorized, "invalid admin token")
	}
	return nil
}

// HashAdminToken produces a bcrypt hash suitable for configuration.
func HashAdminToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
