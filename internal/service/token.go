package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the verified (user id, role) pair the auth provider attests to.
// Session issuance lives outside this service; we only parse what it signed.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// TokenManager verifies the access tokens minted by the auth provider.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a token verifier for the shared secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// ParseAccess extracts the caller identity from an access token.
func (m *TokenManager) ParseAccess(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	role, _ := claims["role"].(string)

	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, err
	}

	return Identity{UserID: userID, Role: role}, nil
}
