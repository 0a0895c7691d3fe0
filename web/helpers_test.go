package web_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-edu-portal/internal/config"
	fakeleadrepo "github.com/jrsteele09/go-edu-portal/leads/repofake"
	fakeprogramrepo "github.com/jrsteele09/go-edu-portal/programs/repofake"
	"github.com/jrsteele09/go-edu-portal/server"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/jrsteele09/go-edu-portal/token/keys"
	refreshrepofake "github.com/jrsteele09/go-edu-portal/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-edu-portal/users/repofake"
	"github.com/jrsteele09/go-edu-portal/web"
	"github.com/prometheus/client_golang/prometheus"
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

func sharedSigner(t *testing.T) keys.Signer {
	t.Helper()
	signerOnce.Do(func() {
		keyPair, err := keys.GenerateRSAKeyPair("test", 2048)
		require.NoError(t, err)
		testSigner = keys.NewKeyPairSigner(keyPair)
	})
	return testSigner
}

// testFixture runs the API backend and the site side by side, sharing one clock.
type testFixture struct {
	api   *httptest.Server
	site  *httptest.Server
	repos server.Repos
	mu    sync.Mutex
	now   time.Time
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

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("FOLDER", t.TempDir())
	t.Setenv("ADMIN_EMAIL", adminEmail)
	t.Setenv("ADMIN_PASSWORD", adminPassword)
	t.Setenv("RATE_LIMIT", "false")

	f := &testFixture{
		now: time.Now().Truncate(time.Second),
		repos: server.Repos{
			Users:    fakeuserrepo.NewFakeUserRepo(),
			Refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
			Programs: fakeprogramrepo.NewFakeProgramRepo(),
			Leads:    fakeleadrepo.NewFakeLeadRepo(),
		},
	}

	api, err := server.New(config.New(), f.repos,
		server.WithSigner(sharedSigner(t)),
		server.WithRegistry(prometheus.NewRegistry()),
		server.WithNowFunc(f.clock),
	)
	require.NoError(t, err)
	t.Cleanup(api.Close)
	f.api = httptest.NewServer(api)
	t.Cleanup(f.api.Close)

	t.Setenv("API_BASE_URL", f.api.URL+server.RouteAPIPrefix)
	site, err := web.New(config.New(), web.WithNowFunc(f.clock))
	require.NoError(t, err)
	f.site = httptest.NewServer(site)
	t.Cleanup(f.site.Close)
	return f
}

// browser keeps cookies and reports redirects instead of following them.
type browser struct {
	t      *testing.T
	client *http.Client
	base   *url.URL
}

func (f *testFixture) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(f.site.URL)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base.String() + path)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base.String()+path, form)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) cookie(name string) string {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) setCookie(name, value string) {
	b.client.Jar.SetCookies(b.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func (b *browser) login(email, password string) {
	b.t.Helper()
	resp, _ := b.post(web.PathLogin, url.Values{"email": {email}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.NotEmpty(b.t, b.cookie(session.AccessTokenKey))
}

func (b *browser) register(email string) {
	b.t.Helper()
	resp, _ := b.post(web.PathRegister, url.Values{
		"email":           {email},
		"password":        {userPassword},
		"confirmPassword": {userPassword},
		"firstName":       {"Grace"},
	})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var sb strings.Builder
	_, err := io.Copy(&sb, resp.Body)
	require.NoError(t, err)
	return sb.String()
}
