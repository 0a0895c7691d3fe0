package apiclient_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// handleStorm installs GET /api/dashboard. Requests carrying "old" are held until n of them
// have arrived and then rejected with 401, so all n fail at the same moment. Any other token is
// recorded and accepted.
func (f *testFixture) handleStorm(n int) *tokenLog {
	var arrived sync.WaitGroup
	arrived.Add(n)
	tokens := &tokenLog{}

	f.mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "old" {
			arrived.Done()
			arrived.Wait()
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "jwt expired"})
			return
		}
		tokens.add(token)
		writeData(w, "welcome")
	})
	return tokens
}

type tokenLog struct {
	lock   sync.Mutex
	tokens []string
}

func (l *tokenLog) add(token string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.tokens = append(l.tokens, token)
}

func (l *tokenLog) all() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.tokens...)
}

func runConcurrently(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn()
		}(i)
	}
	wg.Wait()
	return errs
}

func TestRefresh_SingleRefreshForConcurrentUnauthorized(t *testing.T) {
	const n = 10
	f := setupTestFixture(t)
	f.signIn(t, "old", "refresh-1")
	f.handleRefresh(func(refreshToken string) (string, string) {
		if refreshToken != "refresh-1" {
			return "", ""
		}
		time.Sleep(20 * time.Millisecond)
		return "new", "refresh-2"
	})
	accepted := f.handleStorm(n)

	errs := runConcurrently(n, func() error {
		var msg string
		if err := f.client.Get(context.Background(), "/dashboard", nil, &msg); err != nil {
			return err
		}
		if msg != "welcome" {
			return fmt.Errorf("unexpected body %q", msg)
		}
		return nil
	})

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Len(t, accepted.all(), n)
	for _, token := range accepted.all() {
		require.Equal(t, "new", token)
	}
	require.Equal(t, "new", f.store.AccessToken())
	require.Equal(t, "refresh-2", f.store.RefreshToken())
	require.Zero(t, f.navigations.Load())
}

func TestRefresh_FailureRejectsEveryRequest(t *testing.T) {
	const n = 8
	f := setupTestFixture(t)
	f.signIn(t, "old", "refresh-1")
	f.handleRefresh(func(string) (string, string) {
		time.Sleep(20 * time.Millisecond)
		return "", ""
	})
	accepted := f.handleStorm(n)

	errs := runConcurrently(n, func() error {
		return f.client.Get(context.Background(), "/dashboard", nil, nil)
	})

	for _, err := range errs {
		require.ErrorIs(t, err, apiclient.ErrSessionExpired)
		require.Equal(t, apiclient.SessionExpiredMessage, apiclient.Message(err))
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.EqualValues(t, 1, f.navigations.Load())
	require.Empty(t, accepted.all())
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.RefreshToken())
}

func TestRefresh_RetriedRequestDoesNotRefreshAgain(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, "old", "refresh-1")
	f.handleRefresh(func(string) (string, string) { return "new", "refresh-2" })

	var seen tokenLog
	f.mux.HandleFunc("GET /api/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		seen.add(bearer(r))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Not allowed"})
	})

	err := f.client.Get(context.Background(), "/admin/orders", nil, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Not allowed", apiErr.Message)

	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Equal(t, []string{"old", "new"}, seen.all())
	require.Zero(t, f.navigations.Load())
	require.Equal(t, "new", f.store.AccessToken())
}

func TestRefresh_MissingRefreshTokenSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, "old", "")
	f.handleRefresh(func(string) (string, string) { return "new", "refresh-2" })
	f.handleStorm(1)

	err := f.client.Get(context.Background(), "/dashboard", nil, nil)
	require.ErrorIs(t, err, apiclient.ErrSessionExpired)
	require.ErrorIs(t, err, apiclient.ErrNoRefreshToken)
	require.Zero(t, f.refreshCalls.Load())
	require.EqualValues(t, 1, f.navigations.Load())
	require.Empty(t, f.store.AccessToken())
}

func TestRefresh_UnauthorizedWithoutTokenPropagates(t *testing.T) {
	f := setupTestFixture(t)
	f.handleRefresh(func(string) (string, string) { return "new", "refresh-2" })
	f.mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid email or password"})
	})

	err := f.client.Post(context.Background(), "/auth/login", map[string]string{"email": "a@b.c"}, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.IsUnauthorized())
	require.Equal(t, "Invalid email or password", apiclient.Message(err))
	require.Zero(t, f.refreshCalls.Load())
	require.Zero(t, f.navigations.Load())
}

func TestCoordinator_QueuesWhileRefreshing(t *testing.T) {
	queue := &queueCounter{}
	f := setupTestFixture(t, apiclient.WithRecorder(queue))
	f.signIn(t, "old", "refresh-1")

	release := make(chan struct{})
	f.handleRefresh(func(string) (string, string) {
		<-release
		return "new", "refresh-2"
	})
	accepted := &tokenLog{}
	f.mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "old" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		accepted.add(bearer(r))
		writeData(w, []string{})
	})

	results := make(chan error, 4)
	get := func() { results <- f.client.Get(context.Background(), "/orders", nil, nil) }

	go get()
	require.Eventually(t, func() bool { return f.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		go get()
	}
	require.Eventually(t, func() bool { return queue.queued.Load() == 3 }, time.Second, 5*time.Millisecond)

	close(release)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-results)
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Equal(t, []string{"new", "new", "new", "new"}, accepted.all())
}

// handleOrders installs GET /api/orders, rejecting "old" and accepting any other token.
func (f *testFixture) handleOrders() {
	f.mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "old" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		writeData(w, []string{})
	})
}

func TestCoordinator_CancelledWaiterDoesNotBlockSettlement(t *testing.T) {
	queue := &queueCounter{}
	f := setupTestFixture(t, apiclient.WithRecorder(queue))
	f.signIn(t, "old", "refresh-1")
	f.handleOrders()

	release := make(chan struct{})
	f.handleRefresh(func(string) (string, string) {
		<-release
		return "new", "refresh-2"
	})

	leader := make(chan error, 1)
	go func() {
		leader <- f.client.Get(context.Background(), "/orders", nil, nil)
	}()
	require.Eventually(t, func() bool { return f.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiter := make(chan error, 1)
	go func() {
		waiter <- f.client.Get(ctx, "/orders", nil, nil)
	}()
	require.Eventually(t, func() bool { return queue.queued.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-waiter, context.Canceled)

	close(release)
	require.NoError(t, <-leader)
	require.Equal(t, "new", f.store.AccessToken())
	require.Zero(t, f.navigations.Load())
}

func TestCoordinator_CancelledLeaderStillSettlesQueue(t *testing.T) {
	queue := &queueCounter{}
	f := setupTestFixture(t, apiclient.WithRecorder(queue))
	f.signIn(t, "old", "refresh-1")

	release := make(chan struct{})
	f.handleRefresh(func(string) (string, string) {
		<-release
		return "new", "refresh-2"
	})
	accepted := &tokenLog{}
	f.mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "old" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		accepted.add(bearer(r))
		writeData(w, []string{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		leader <- f.client.Get(ctx, "/orders", nil, nil)
	}()
	require.Eventually(t, func() bool { return f.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	waiter := make(chan error, 1)
	go func() {
		waiter <- f.client.Get(context.Background(), "/orders", nil, nil)
	}()
	require.Eventually(t, func() bool { return queue.queued.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	close(release)
	// The leader's replay runs on its cancelled context, but the refresh itself completes.
	<-leader
	require.NoError(t, <-waiter)
	require.Equal(t, "new", f.store.AccessToken())
	require.Contains(t, accepted.all(), "new")
}

func TestCoordinator_AlreadyRefreshedTokenSkipsNetwork(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, "old", "refresh-1")
	f.handleRefresh(func(string) (string, string) { return "newer", "refresh-3" })

	// Another request finishes a refresh while this one is still in flight with "old".
	accepted := &tokenLog{}
	f.mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "old" {
			_ = f.store.Save(session.Session{AccessToken: "new", RefreshToken: "refresh-2"})
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		accepted.add(bearer(r))
		writeData(w, []string{})
	})

	require.NoError(t, f.client.Get(context.Background(), "/orders", nil, nil))
	require.Equal(t, []string{"new"}, accepted.all())
	require.Zero(t, f.refreshCalls.Load())
}

func TestRefreshGroup_SharesExchangeBetweenClients(t *testing.T) {
	const n = 6
	now := time.Now()
	group := apiclient.NewRefreshGroup(time.Minute, func() time.Time { return now })

	api := setupTestFixture(t)
	api.handleRefresh(func(refreshToken string) (string, string) {
		if refreshToken != "refresh-1" {
			return "", ""
		}
		time.Sleep(20 * time.Millisecond)
		return "new", "refresh-2"
	})
	api.handleOrders()

	// Each client keeps its own copy of the same session, like concurrent page loads that
	// share one browser's cookies.
	stores := make([]*session.Store, n)
	clients := make([]*apiclient.Client, n)
	for i := range clients {
		stores[i] = session.NewStore(session.NewMemoryStorage())
		require.NoError(t, stores[i].Save(session.Session{AccessToken: "old", RefreshToken: "refresh-1"}))
		client, err := apiclient.New(api.server.URL+"/api", stores[i],
			apiclient.WithLogger(zerolog.Nop()),
			apiclient.WithRefreshGroup(group),
		)
		require.NoError(t, err)
		clients[i] = client
	}

	var next atomic.Int32
	errs := runConcurrently(n, func() error {
		return clients[next.Add(1)-1].Get(context.Background(), "/orders", nil, nil)
	})
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())
	for _, store := range stores {
		require.Equal(t, "new", store.AccessToken())
		require.Equal(t, "refresh-2", store.RefreshToken())
	}

	// A late arrival inside the grace period adopts the same pair.
	late := session.NewStore(session.NewMemoryStorage())
	require.NoError(t, late.Save(session.Session{AccessToken: "old", RefreshToken: "refresh-1"}))
	client, err := apiclient.New(api.server.URL+"/api", late,
		apiclient.WithLogger(zerolog.Nop()),
		apiclient.WithRefreshGroup(group),
	)
	require.NoError(t, err)
	require.NoError(t, client.Get(context.Background(), "/orders", nil, nil))
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Equal(t, "refresh-2", late.RefreshToken())

	// Once the grace period has passed the rotated token goes back to the API, which rejects it.
	now = now.Add(2 * time.Minute)
	require.NoError(t, late.Save(session.Session{AccessToken: "old", RefreshToken: "refresh-1"}))
	err = client.Get(context.Background(), "/orders", nil, nil)
	require.ErrorIs(t, err, apiclient.ErrSessionExpired)
	require.EqualValues(t, 2, api.refreshCalls.Load())
}

func TestRefreshGroup_FailureIsNotRemembered(t *testing.T) {
	group := apiclient.NewRefreshGroup(time.Minute, nil)
	calls := 0
	exchange := func(context.Context, string) (session.Session, error) {
		calls++
		if calls == 1 {
			return session.Session{}, apiclient.ErrNoRefreshToken
		}
		return session.Session{AccessToken: "new", RefreshToken: "refresh-2"}, nil
	}

	_, err := group.Do(context.Background(), "refresh-1", exchange)
	require.ErrorIs(t, err, apiclient.ErrNoRefreshToken)

	next, err := group.Do(context.Background(), "refresh-1", exchange)
	require.NoError(t, err)
	require.Equal(t, "new", next.AccessToken)
	require.Equal(t, 2, calls)
}

// queueCounter counts callers that waited behind an in-flight refresh.
type queueCounter struct {
	queued atomic.Int32
}

func (q *queueCounter) RecordClientResponse(string, int) {}
func (q *queueCounter) RecordRefresh(string)             {}
func (q *queueCounter) RecordQueued()                    { q.queued.Add(1) }
