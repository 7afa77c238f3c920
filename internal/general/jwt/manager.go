package jwt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"pickup-market/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken         = errors.New("bearer token missing")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrRoleForbidden      = errors.New("role not allowed")
	ErrMissingSubject     = errors.New("token has no subject")
)

// Manager mints and verifies HS256 tokens. The dev token tool always holds the secret;
// agents hold it only when backend.token_secret is configured.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}

	return &Manager{
		secret:    []byte(s),
		accessTTL: accessTTL,
	}
}

// IssueUserToken returns a signed access token for a driver or seller.
func (m *Manager) IssueUserToken(userID string, role user.Role) (string, *Claims, error) {
	// validate role
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}

	// create claims and sign token
	claims := NewUserClaims(userID, role, m.accessTTL)
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(m.secret)

	return signed, claims, err
}

// ParseAndValidate verifies signature and standard claims.
func (m *Manager) ParseAndValidate(tokenString string) (*jwtlib.Token, *Claims, error) {
	// create parser with expected signing method
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	// validate claims and signature
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, nil, err
	}

	// ensure token is valid
	if !token.Valid {
		return nil, nil, errors.New("invalid token")
	}

	return token, claims, nil
}

// ParseUnverified reads subject and role from a bearer token without checking the
// signature. The backend stays the authority; the agent only needs to know who it is.
func ParseUnverified(raw string) (*Claims, error) {
	raw = trimBearer(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return checkIdentity(claims)
}

// AgentClaims reads the agent's own token. With a secret the signature and expiry are
// verified too, so a kiosk sharing the backend secret refuses to start on a stale token.
func AgentClaims(raw, secret string) (*Claims, error) {
	if strings.TrimSpace(secret) == "" {
		return ParseUnverified(raw)
	}

	raw = trimBearer(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}
	_, claims, err := NewManager(secret, 0).ParseAndValidate(raw)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return checkIdentity(claims)
}

func trimBearer(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
}

// checkIdentity requires a subject and normalizes the role claim.
func checkIdentity(claims *Claims) (*Claims, error) {
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	role, err := user.ParseRole(string(claims.Role))
	if err != nil {
		return nil, fmt.Errorf("token role %q: %w", claims.Role, err)
	}
	claims.Role = role
	return claims, nil
}

// RoleAllowed asserts the claims' role is one of the allowed.
func RoleAllowed(cl *Claims, allowed ...user.Role) error {
	if slices.Contains(allowed, cl.Role) {
		return nil
	}
	return ErrRoleForbidden
}

// Context wiring (used by middleware)
type ctxKey string

const claimsCtxKey ctxKey = "jwtClaims"

// InjectClaims adds JWT claims to the context.
func InjectClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// FromContext extracts JWT claims from the context.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*Claims)
	return c, ok
}
