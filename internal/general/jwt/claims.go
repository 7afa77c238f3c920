package jwt

import (
	"time"

	"pickup-market/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the marketplace bearer payload. Subject carries the user id.
type Claims struct {
	Role user.Role `json:"role"` // DRIVER or SELLER
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs end-user claims.
func NewUserClaims(userID string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }
