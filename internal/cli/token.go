package cli

import (
	"fmt"
	"time"

	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a driver or seller so an agent can be run
// against a local backend stub.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateUserToken(secret, "17", "DRIVER", 12*time.Hour)
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	// parse and validate the role
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	// set up a new JWT manager
	mgr := jwt.NewManager(secret, ttl)

	// generate the JWT token given the user ID and its role
	token, claims, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
