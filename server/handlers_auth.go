package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-edu-portal/auth"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/rs/zerolog"
)

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RegisterHandler creates an account and signs it in.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		sess, err := s.auth.Register(r.Context(), &req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, "Registration successful", sess)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		sess, err := s.auth.Login(r.Context(), &req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Login successful", sess)
	}
}

// RefreshHandler exchanges a refresh token for a new token pair. The old refresh token stops
// working.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		sess, err := s.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Token refreshed", sess.TokenPair)
	}
}

// LogoutHandler always succeeds. A still-valid bearer token is revoked along with the refresh
// token so neither can be replayed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if r.ContentLength != 0 {
			if err := decodeBody(w, r, &req); err != nil {
				writeError(w, r, err)
				return
			}
		}

		var (
			jti    string
			expiry time.Time
		)
		if token, ok := bearerToken(r); ok {
			if claims, err := s.verifier.Verify(r.Context(), token); err == nil && claims.ExpiresAt != nil {
				jti, expiry = claims.ID, claims.ExpiresAt.Time
			}
		}

		if err := s.auth.Logout(r.Context(), req.RefreshToken, jti, expiry); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("logout failed")
		}
		writeData(w, http.StatusOK, "Logged out", nil)
	}
}

// MeHandler returns the signed-in user's profile.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, r, errors.ErrInvalidToken)
			return
		}

		user, err := s.auth.Me(claims.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "", user)
	}
}
