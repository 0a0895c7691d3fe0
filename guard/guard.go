// Package guard decides what a page request may see based on the locally stored session.
//
// The decision is for navigation only. Tokens are decoded, never verified: the API validates
// every token it receives, so a forged token can at most render an empty page.
package guard

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	RedirectParam = "redirect"
)

var (
	// ProtectedPrefixes require a session.
	ProtectedPrefixes = []string{"/dashboard", "/admin", "/profile", "/settings"}
	// AuthOnlyPrefixes are pages that make no sense with a session, such as the login form.
	AuthOnlyPrefixes = []string{"/login", "/register", "/forgot-password"}
	// AdminPrefixes additionally require the admin role.
	AdminPrefixes = []string{"/admin"}
)

// Decision is the outcome of Check. When Redirect is set the page must not be rendered.
type Decision struct {
	Identity *identity.Identity
	Redirect string
}

// Authenticated reports whether a usable session exists.
func (d Decision) Authenticated() bool {
	return d.Identity != nil
}

// Admin reports whether the session belongs to an administrator.
func (d Decision) Admin() bool {
	return d.Identity != nil && d.Identity.IsAdmin()
}

// Clearer removes the stored session.
type Clearer interface {
	Clear() error
}

type Guard struct {
	clearer Clearer
	logger  zerolog.Logger
}

type Option func(*Guard)

// WithClearer sets the store cleared when the stored token cannot be used.
func WithClearer(c Clearer) Option {
	return func(g *Guard) {
		g.clearer = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(options ...Option) *Guard {
	g := &Guard{logger: log.Logger}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check derives the session state for requestURI from tokens. An expired access token is
// refreshed by tokens before it counts as a session. Only a failed refresh or an undecodable
// token clears the session; a missing session is simply anonymous.
func (g *Guard) Check(ctx context.Context, requestURI string, tokens oauth2.TokenSource) Decision {
	path := pathOf(requestURI)

	var id *identity.Identity
	tok, err := tokens.Token()
	switch {
	case err == nil:
		decoded, decodeErr := identity.Decode(tok.AccessToken)
		if decodeErr != nil {
			g.drop(ctx, decodeErr)
			break
		}
		id = decoded
	case errors.Is(err, session.ErrNoSession):
	default:
		g.drop(ctx, err)
	}

	decision := Decision{Identity: id}
	switch {
	case id == nil && matches(path, ProtectedPrefixes):
		decision.Redirect = LoginRedirect(requestURI)
	case id != nil && matches(path, AuthOnlyPrefixes):
		decision.Redirect = DashboardPath
	case id != nil && !id.IsAdmin() && matches(path, AdminPrefixes):
		decision.Redirect = DashboardPath
	}
	return decision
}

func (g *Guard) drop(ctx context.Context, err error) {
	g.logger.Debug().Ctx(ctx).Err(err).Msg("discarding unusable session")
	if g.clearer == nil {
		return
	}
	if clearErr := g.clearer.Clear(); clearErr != nil {
		g.logger.Error().Ctx(ctx).Err(clearErr).Msg("failed to clear session")
	}
}

// LoginRedirect is the login page URL that returns to requestURI after signing in.
func LoginRedirect(requestURI string) string {
	return LoginPath + "?" + url.Values{RedirectParam: {requestURI}}.Encode()
}

// SafeRedirect returns target if it is a local absolute path, otherwise the dashboard.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return DashboardPath
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DashboardPath
	}
	if matches(u.Path, AuthOnlyPrefixes) {
		return DashboardPath
	}
	return target
}

// IsProtected reports whether path requires a session.
func IsProtected(path string) bool {
	return matches(path, ProtectedPrefixes)
}

func matches(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func pathOf(requestURI string) string {
	u, err := url.ParseRequestURI(requestURI)
	if err != nil {
		if i := strings.IndexAny(requestURI, "?#"); i >= 0 {
			return requestURI[:i]
		}
		return requestURI
	}
	return u.Path
}
