// Package claims holds the access-token claims type and the request-context
// helpers for retrieving them. It lives below both auth and users so that
// handler packages can read claims without importing auth, which itself
// depends on users.
package claims

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserClaimsKey contextKey = "user_claims"

// AccessClaims carries the user's identity and tier. The tier is embedded so
// the admin gate and quota handlers don't need a user lookup per request; a
// tier change takes effect at the next token refresh.
type AccessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

func GetUserClaims(ctx context.Context) *AccessClaims {
	claims, _ := ctx.Value(UserClaimsKey).(*AccessClaims)
	return claims
}
