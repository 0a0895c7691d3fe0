package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/auth"
	"github.com/jrsteele09/go-edu-portal/internal/config"
	fakeleadrepo "github.com/jrsteele09/go-edu-portal/leads/repofake"
	fakeprogramrepo "github.com/jrsteele09/go-edu-portal/programs/repofake"
	"github.com/jrsteele09/go-edu-portal/server"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/jrsteele09/go-edu-portal/token/keys"
	refreshrepofake "github.com/jrsteele09/go-edu-portal/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-edu-portal/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@test.local"
	adminPassword = "AdminPassw0rd"
	userPassword  = "Passw0rd"
)

var (
	signerOnce sync.Once
	testSigner keys.Signer
)

// sharedSigner avoids generating an RSA key for every test.
func sharedSigner(t *testing.T) keys.Signer {
	t.Helper()
	signerOnce.Do(func() {
		keyPair, err := keys.GenerateRSAKeyPair("test", 2048)
		require.NoError(t, err)
		testSigner = keys.NewKeyPairSigner(keyPair)
	})
	return testSigner
}

type testFixture struct {
	server *server.Server
	http   *httptest.Server
	repos  server.Repos
	mu     sync.Mutex
	now    time.Time
}

func (f *testFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T, env map[string]string) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("FOLDER", t.TempDir())
	t.Setenv("ADMIN_EMAIL", adminEmail)
	t.Setenv("ADMIN_PASSWORD", adminPassword)
	t.Setenv("RATE_LIMIT", "false")
	t.Setenv("BASE_URL", "http://issuer.test")
	for k, v := range env {
		t.Setenv(k, v)
	}

	f := &testFixture{
		now: time.Now().Truncate(time.Second),
		repos: server.Repos{
			Users:    fakeuserrepo.NewFakeUserRepo(),
			Refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
			Programs: fakeprogramrepo.NewFakeProgramRepo(),
			Leads:    fakeleadrepo.NewFakeLeadRepo(),
		},
	}

	srv, err := server.New(config.New(), f.repos,
		server.WithSigner(sharedSigner(t)),
		server.WithRegistry(prometheus.NewRegistry()),
		server.WithNowFunc(f.clock),
	)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	f.server = srv

	f.http = httptest.NewServer(srv)
	t.Cleanup(f.http.Close)
	return f
}

// newClient returns an API client with an empty in-memory session.
func (f *testFixture) newClient(t *testing.T, navigations *int) (*apiclient.Client, *session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage())
	client, err := apiclient.New(f.http.URL+server.RouteAPIPrefix, store,
		apiclient.WithLogger(zerolog.Nop()),
		apiclient.WithNowFunc(f.clock),
		apiclient.WithNavigator(apiclient.NavigatorFunc(func() {
			if navigations != nil {
				*navigations++
			}
		})),
	)
	require.NoError(t, err)
	return client, store
}

// login signs email in through the API and saves the issued pair in store.
func login(t *testing.T, client *apiclient.Client, store *session.Store, email, password string) *auth.Session {
	t.Helper()
	var sess auth.Session
	err := client.Post(context.Background(), "/auth/login", auth.LoginRequest{Email: email, Password: password}, &sess)
	require.NoError(t, err)
	require.NoError(t, store.Save(session.Session{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}))
	return &sess
}

func register(t *testing.T, client *apiclient.Client, store *session.Store, email string) *auth.Session {
	t.Helper()
	var sess auth.Session
	err := client.Post(context.Background(), "/auth/register", auth.RegisterRequest{
		Email:           email,
		Password:        userPassword,
		ConfirmPassword: userPassword,
		FirstName:       "Grace",
		LastName:        "Hopper",
	}, &sess)
	require.NoError(t, err)
	require.NoError(t, store.Save(session.Session{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}))
	return &sess
}

// rawRequest bypasses the API client, for asserting on status codes and headers.
func (f *testFixture) rawRequest(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.http.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}
