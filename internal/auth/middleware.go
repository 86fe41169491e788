package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/auth/claims"
	"github.com/draftwise/draftwise/internal/tiers"
)

const UserClaimsKey = claims.UserClaimsKey

func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := svc.jwt.ValidateAccessToken(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates administrative routes on the ADMIN tier. Must run after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserClaims(r.Context())
		if claims == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}
		if tiers.Tier(claims.Tier) != tiers.TierAdmin {
			api.HandleError(w, api.ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserClaims(ctx context.Context) *AccessClaims {
	return claims.GetUserClaims(ctx)
}
