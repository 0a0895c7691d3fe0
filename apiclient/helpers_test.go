package apiclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testFixture is an API stand-in plus a client whose session lives in memory.
type testFixture struct {
	mux          *http.ServeMux
	server       *httptest.Server
	store        *session.Store
	client       *apiclient.Client
	refreshCalls atomic.Int32
	navigations  atomic.Int32
}

func setupTestFixture(t *testing.T, options ...apiclient.Option) *testFixture {
	t.Helper()

	f := &testFixture{mux: http.NewServeMux()}
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)

	f.store = session.NewStore(session.NewMemoryStorage())

	opts := []apiclient.Option{
		apiclient.WithLogger(zerolog.Nop()),
		apiclient.WithNavigator(apiclient.NavigatorFunc(func() { f.navigations.Add(1) })),
	}
	client, err := apiclient.New(f.server.URL+"/api", f.store, append(opts, options...)...)
	require.NoError(t, err)
	f.client = client
	return f
}

// handleRefresh installs the refresh endpoint. next returns the new pair, or an empty
// access token to reject the refresh.
func (f *testFixture) handleRefresh(next func(refreshToken string) (string, string)) {
	f.mux.HandleFunc("POST /api"+apiclient.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		access, refresh := next(body.RefreshToken)
		if access == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"accessToken": access, "refreshToken": refresh},
		})
	})
}

func (f *testFixture) signIn(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.store.Save(session.Session{AccessToken: access, RefreshToken: refresh}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// accessToken builds a token the client can decode. The signature is irrelevant to the client.
func accessToken(t *testing.T, userID, role string, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":    userID,
		"email":     userID + "@example.com",
		"firstName": "Test",
		"role":      role,
		"exp":       exp.Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}
