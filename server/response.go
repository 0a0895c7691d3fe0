package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-edu-portal/auth"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/rs/zerolog"
)

const (
	defaultPageLimit     = 10
	maxPageLimit         = 100
	internalErrorMessage = "Internal server error"
)

type dataEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type pageEnvelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Meta    pageMeta `json:"meta"`
}

type pageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type errorEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, dataEnvelope{Success: true, Message: message, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, Message: message})
}

// pagination reads ?page and ?limit, defaulting to the first page of ten.
type pagination struct {
	page  int
	limit int
}

func parsePagination(r *http.Request) pagination {
	p := pagination{page: 1, limit: defaultPageLimit}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.limit = min(v, maxPageLimit)
	}
	return p
}

func (p pagination) offset() int {
	return (p.page - 1) * p.limit
}

func writePage[T any](w http.ResponseWriter, p pagination, items []T, total int) {
	if items == nil {
		items = []T{}
	}
	totalPages := (total + p.limit - 1) / p.limit
	writeJSON(w, http.StatusOK, pageEnvelope{
		Success: true,
		Data:    items,
		Meta:    pageMeta{Page: p.page, Limit: p.limit, Total: total, TotalPages: totalPages},
	})
}

// writeError maps domain errors onto HTTP responses. Unknown errors are logged and reported
// as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Message: "Validation failed", Errors: validationErr.Fields})
	case errors.Is(err, errors.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, errors.ErrInvalidRefreshToken):
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, errors.ErrRefreshTokenExpired):
		writeMessage(w, http.StatusUnauthorized, "Refresh token expired")
	case errors.Is(err, errors.ErrInvalidToken), errors.Is(err, errors.ErrTokenExpired):
		writeMessage(w, http.StatusUnauthorized, "Invalid access token")
	case errors.Is(err, errors.ErrUserBlocked):
		writeMessage(w, http.StatusForbidden, "Account is blocked")
	case errors.Is(err, errors.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "You do not have permission to do that")
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, errors.ErrInvalidRequest):
		writeMessage(w, http.StatusBadRequest, "Invalid request")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, internalErrorMessage)
	}
}

// decodeBody reads a JSON request body of at most 1MB into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "decode body: %v", err)
	}
	return nil
}
