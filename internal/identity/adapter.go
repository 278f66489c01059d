package identity

import (
	authmw "labcert/pkg/platform/middleware/auth"
)

// TokenServiceAdapter bridges TokenService to the auth middleware's
// validator interface.
type TokenServiceAdapter struct {
	service *TokenService
}

// NewTokenServiceAdapter wraps a token service.
func NewTokenServiceAdapter(service *TokenService) *TokenServiceAdapter {
	return &TokenServiceAdapter{service: service}
}

// ValidateToken validates a token and maps its claims.
func (a *TokenServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{
		UserID: claims.UserID,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
