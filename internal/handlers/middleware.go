package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/fanvault/apiserver/internal/services"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
)

// RequireAuth verifies the bearer token and injects the token identity into
// the request context. Requests without a valid token get 401.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			identity, err := parseToken(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth injects the token identity when a valid bearer token is
// present and proceeds anonymously otherwise. Catalog reads use this so
// moderators see hidden works and signed-in users get their own flags.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString, err := bearerToken(r); err == nil {
				if identity, err := parseToken(tokenString, secret); err == nil {
					ctx := context.WithValue(r.Context(), contextIdentityKey, identity)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard layers fresh account checks on top of token auth.
type Guard struct {
	users *services.UserService
}

func NewGuard(users *services.UserService) *Guard {
	return &Guard{users: users}
}

// RequireAccount loads the caller's account from the store and rejects banned
// or deleted accounts. Tokens outlive bans, so every mutating route re-checks
// here instead of trusting the claims.
func (g *Guard) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := g.users.GetByID(r.Context(), identity.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			writeInternalError(w, r, "failed to load account", err)
			return
		}
		if user.IsBanned {
			writeError(w, http.StatusUnauthorized, "Account suspended")
			return
		}

		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole builds on RequireAccount and rejects callers whose stored role
// is below the minimum.
func (g *Guard) RequireRole(minimum string) func(http.Handler) http.Handler {
	message := "Moderator access required"
	if minimum == types.RoleAdmin {
		message = "Admin access required"
	}
	return func(next http.Handler) http.Handler {
		return g.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !types.RoleAtLeast(user.Role, minimum) {
				writeError(w, http.StatusForbidden, message)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
