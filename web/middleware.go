package web

import (
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/guard"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// visit is one page request's view of the session.
type visit struct {
	Session  *session.Store
	Client   *apiclient.Client
	Decision guard.Decision

	signedOut atomic.Bool // set when the client gave up on the session mid-request
}

type pageHandler func(w http.ResponseWriter, r *http.Request, v *visit)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// page wraps h with request logging, panic recovery and the route guard. h only runs when the
// guard allows the request.
func (s *Site) page(h pageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.With().Str("request_id", uuid.New().String()).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("page panicked")
				http.Error(rec, "Internal server error", http.StatusInternalServerError)
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", time.Since(start)).
				Msg("page")
		}()

		v, err := s.newVisit(rec, r, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create api client")
			http.Error(rec, "Service unavailable", http.StatusServiceUnavailable)
			return
		}

		v.Decision = guard.New(guard.WithClearer(v.Session), guard.WithLogger(logger)).
			Check(r.Context(), r.URL.RequestURI(), v.Client.TokenSource(r.Context()))
		if v.Decision.Redirect != "" {
			http.Redirect(rec, r, v.Decision.Redirect, http.StatusFound)
			return
		}
		h(rec, r, v)
	}
}

// newVisit binds a session store and API client to the request's cookies. A browser loading
// several pages at once presents the same refresh token on each of them, so the exchange goes
// through the site's refresh group and every visit writes the shared result to its own cookies.
func (s *Site) newVisit(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (*visit, error) {
	storage := NewCookieStorage(w, r, s.secureCookies(), s.config.GetRefreshTokenExpiry())
	v := &visit{Session: session.NewStore(storage)}

	opts := []apiclient.Option{
		apiclient.WithHTTPClient(s.httpClient),
		apiclient.WithTimeout(s.config.GetRequestTimeout()),
		apiclient.WithLogger(logger),
		apiclient.WithNowFunc(s.nowFunc),
		apiclient.WithRefreshGroup(s.refreshes),
		apiclient.WithNavigator(apiclient.NavigatorFunc(func() { v.signedOut.Store(true) })),
	}
	if s.recorder != nil {
		opts = append(opts, apiclient.WithRecorder(s.recorder))
	}

	client, err := apiclient.New(s.config.GetAPIBaseURL(), v.Session, opts...)
	if err != nil {
		return nil, err
	}
	v.Client = client
	return v, nil
}

// sessionLost redirects to the login page when err means the session could not be recovered.
func sessionLost(w http.ResponseWriter, r *http.Request, v *visit, err error) bool {
	if !errors.Is(err, apiclient.ErrSessionExpired) && !v.signedOut.Load() {
		return false
	}
	http.Redirect(w, r, guard.LoginRedirect(r.URL.RequestURI()), http.StatusFound)
	return true
}
