package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
)

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*identity.Claims)
	return claims, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireAuth is middleware that validates a Bearer access token and stores its claims in the
// request context. Any failure is a 401, which is what makes the client refresh its session.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("rejected access token")
			if errors.Is(err, errors.ErrTokenExpired) {
				writeMessage(w, http.StatusUnauthorized, "Access token expired")
				return
			}
			writeMessage(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		logger := zerolog.Ctx(r.Context()).With().Str("user_id", claims.UserID).Logger()
		ctx := logger.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin must follow RequireAuth.
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if claims.Role != identity.RoleAdmin {
			writeError(w, r, errors.ErrForbidden)
			return
		}
		next(w, r)
	}
}
