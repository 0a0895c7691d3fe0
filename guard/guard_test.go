package guard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/guard"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	store        *session.Store
	client       *apiclient.Client
	guard        *guard.Guard
	requests     atomic.Int32
	refreshCalls atomic.Int32
	refreshTo    string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.URL.Path != "/api"+apiclient.RefreshPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if f.refreshTo == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid refresh token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"accessToken": f.refreshTo, "refreshToken": "refresh-2"},
		})
	}))
	t.Cleanup(server.Close)

	f.store = session.NewStore(session.NewMemoryStorage())
	client, err := apiclient.New(server.URL+"/api", f.store,
		apiclient.WithLogger(zerolog.Nop()),
		apiclient.WithNowFunc(func() time.Time { return now }),
	)
	require.NoError(t, err)
	f.client = client
	f.guard = guard.New(guard.WithClearer(f.store), guard.WithLogger(zerolog.Nop()))
	return f
}

func (f *testFixture) check(path string) guard.Decision {
	return f.guard.Check(context.Background(), path, f.client.TokenSource(context.Background()))
}

func token(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u1",
		"email":  "u1@example.com",
		"role":   role,
		"exp":    exp.Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}

func TestCheck_ValidTokenNeedsNoNetwork(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save(session.Session{AccessToken: token(t, "user", now.Add(time.Hour)), RefreshToken: "r"}))

	d := f.check("/dashboard")
	require.True(t, d.Authenticated())
	require.False(t, d.Admin())
	require.Empty(t, d.Redirect)
	require.Equal(t, "u1", d.Identity.UserID)
	require.Zero(t, f.requests.Load())
}

func TestCheck_AnonymousOnProtectedPath(t *testing.T) {
	f := setupTestFixture(t)

	d := f.check("/dashboard")
	require.False(t, d.Authenticated())
	require.Equal(t, "/login?redirect=%2Fdashboard", d.Redirect)
	require.Zero(t, f.requests.Load())

	t.Run("query is preserved", func(t *testing.T) {
		d := f.check("/settings/profile?tab=security")
		require.Equal(t, "/login?redirect=%2Fsettings%2Fprofile%3Ftab%3Dsecurity", d.Redirect)
	})
}

func TestCheck_SignedInOnAuthOnlyPath(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save(session.Session{AccessToken: token(t, "user", now.Add(time.Hour)), RefreshToken: "r"}))

	for _, path := range []string{"/login", "/register", "/forgot-password", "/login?redirect=%2Fprofile"} {
		t.Run(path, func(t *testing.T) {
			require.Equal(t, guard.DashboardPath, f.check(path).Redirect)
		})
	}
}

func TestCheck_PublicPaths(t *testing.T) {
	f := setupTestFixture(t)
	for _, path := range []string{"/", "/programs", "/dashboards", "/login"} {
		t.Run(path, func(t *testing.T) {
			d := f.check(path)
			require.Empty(t, d.Redirect)
			require.False(t, d.Authenticated())
		})
	}
}

func TestCheck_ExpiredTokenRefreshesFirst(t *testing.T) {
	f := setupTestFixture(t)
	f.refreshTo = token(t, "admin", now.Add(15*time.Minute))
	require.NoError(t, f.store.Save(session.Session{AccessToken: token(t, "admin", now.Add(-time.Second)), RefreshToken: "r"}))

	d := f.check("/admin")
	require.True(t, d.Authenticated())
	require.True(t, d.Admin())
	require.Empty(t, d.Redirect)
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Equal(t, f.refreshTo, f.store.AccessToken())
}

func TestCheck_ExpiredTokenWithFailedRefresh(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save(session.Session{AccessToken: token(t, "user", now.Add(-time.Second)), RefreshToken: "r"}))

	d := f.check("/profile")
	require.False(t, d.Authenticated())
	require.Equal(t, "/login?redirect=%2Fprofile", d.Redirect)
	require.EqualValues(t, 1, f.refreshCalls.Load())

	_, err := f.store.Load()
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestCheck_MalformedTokenClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save(session.Session{AccessToken: "garbage", RefreshToken: "r"}))

	d := f.check("/dashboard")
	require.False(t, d.Authenticated())
	require.Equal(t, "/login?redirect=%2Fdashboard", d.Redirect)
	require.Zero(t, f.refreshCalls.Load())

	_, err := f.store.Load()
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestCheck_NonAdminOnAdminPath(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save(session.Session{AccessToken: token(t, "user", now.Add(time.Hour)), RefreshToken: "r"}))

	require.Equal(t, guard.DashboardPath, f.check("/admin/leads").Redirect)
}

type staticSource struct {
	tok *oauth2.Token
	err error
}

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, s.err }

type countingClearer struct{ calls int }

func (c *countingClearer) Clear() error {
	c.calls++
	return nil
}

func TestCheck_TokenSourceErrors(t *testing.T) {
	t.Run("no session is anonymous and keeps storage", func(t *testing.T) {
		clearer := &countingClearer{}
		g := guard.New(guard.WithClearer(clearer), guard.WithLogger(zerolog.Nop()))

		d := g.Check(context.Background(), "/", staticSource{err: session.ErrNoSession})
		require.False(t, d.Authenticated())
		require.Zero(t, clearer.calls)
	})

	t.Run("other errors clear the session", func(t *testing.T) {
		clearer := &countingClearer{}
		g := guard.New(guard.WithClearer(clearer), guard.WithLogger(zerolog.Nop()))

		d := g.Check(context.Background(), "/admin", staticSource{err: errors.New("boom")})
		require.False(t, d.Authenticated())
		require.Equal(t, "/login?redirect=%2Fadmin", d.Redirect)
		require.Equal(t, 1, clearer.calls)
	})
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                       guard.DashboardPath,
		"/profile":               "/profile",
		"/programs?page=2":       "/programs?page=2",
		"https://evil.example":   guard.DashboardPath,
		"//evil.example/path":    guard.DashboardPath,
		"/\\evil.example":        guard.DashboardPath,
		"javascript:alert(1)":    guard.DashboardPath,
		"dashboard":              guard.DashboardPath,
		"/login":                 guard.DashboardPath,
		"/register?redirect=%2F": guard.DashboardPath,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, guard.SafeRedirect(in))
		})
	}
}

func TestIsProtected(t *testing.T) {
	require.True(t, guard.IsProtected("/dashboard"))
	require.True(t, guard.IsProtected("/admin/leads"))
	require.False(t, guard.IsProtected("/administrator"))
	require.False(t, guard.IsProtected("/programs"))
}
