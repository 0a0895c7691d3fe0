package apiclient

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-edu-portal/session"
)

// DefaultRefreshGrace is how long a RefreshGroup hands out the result of a completed exchange.
const DefaultRefreshGrace = 30 * time.Second

type groupCall struct {
	done chan struct{}
	next session.Session
	err  error
}

type groupResult struct {
	next    session.Session
	expires time.Time
}

// RefreshGroup shares token exchanges between Clients holding copies of the same session, such
// as the per-request clients of a site whose browser loads several pages at once.
//
// The API rotates refresh tokens, so only the first exchange of a token succeeds. A caller that
// presents a token already being exchanged waits for that exchange and gets its outcome. A caller
// that presents a token exchanged successfully within the grace period gets the same new session
// without calling the API.
type RefreshGroup struct {
	grace   time.Duration
	nowFunc func() time.Time

	lock      sync.Mutex
	inFlight  map[string]*groupCall
	completed map[string]groupResult
}

// NewRefreshGroup creates a RefreshGroup. A nil now uses time.Now.
func NewRefreshGroup(grace time.Duration, now func() time.Time) *RefreshGroup {
	if now == nil {
		now = time.Now
	}
	return &RefreshGroup{
		grace:     grace,
		nowFunc:   now,
		inFlight:  make(map[string]*groupCall),
		completed: make(map[string]groupResult),
	}
}

// Do returns the session that replaces refreshToken, running exchange only when no other
// caller is exchanging or has recently exchanged the same token. Waiting is bounded by the
// running exchange, which is detached from its caller's cancellation.
func (g *RefreshGroup) Do(ctx context.Context, refreshToken string, exchange func(context.Context, string) (session.Session, error)) (session.Session, error) {
	g.lock.Lock()
	g.prune(g.nowFunc())

	if res, ok := g.completed[refreshToken]; ok {
		g.lock.Unlock()
		return res.next, nil
	}
	if call, ok := g.inFlight[refreshToken]; ok {
		g.lock.Unlock()
		<-call.done
		return call.next, call.err
	}

	call := &groupCall{done: make(chan struct{})}
	g.inFlight[refreshToken] = call
	g.lock.Unlock()

	call.next, call.err = exchange(ctx, refreshToken)

	g.lock.Lock()
	delete(g.inFlight, refreshToken)
	if call.err == nil && g.grace > 0 {
		g.completed[refreshToken] = groupResult{next: call.next, expires: g.nowFunc().Add(g.grace)}
	}
	g.lock.Unlock()

	close(call.done)
	return call.next, call.err
}

func (g *RefreshGroup) prune(now time.Time) {
	for token, res := range g.completed {
		if !now.Before(res.expires) {
			delete(g.completed, token)
		}
	}
}
