package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-edu-portal/internal/metrics"
	"github.com/jrsteele09/go-edu-portal/session"
)

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

type refreshResult struct {
	token string
	err   error
}

// coordinator makes sure a burst of 401s costs a single refresh call.
//
// The first caller performs the refresh. Callers that arrive while it is in flight wait in a
// FIFO queue and receive the same outcome. Each queue entry is a buffered channel, so settling
// the queue never blocks on a caller that has gone away.
type coordinator struct {
	client *Client

	lock    sync.Mutex
	state   refreshState
	pending []chan refreshResult

	// failedToken is the stale token of the last failed refresh, so late arrivals from the
	// same storm get the same error without another refresh or navigation.
	failedToken string
	failedErr   error
}

func newCoordinator(c *Client) *coordinator {
	return &coordinator{client: c}
}

// Refresh returns an access token that replaces stale.
func (co *coordinator) Refresh(ctx context.Context, stale string) (string, error) {
	co.lock.Lock()

	if co.state == stateRefreshing {
		ch := make(chan refreshResult, 1)
		co.pending = append(co.pending, ch)
		co.lock.Unlock()
		co.client.recorder.RecordQueued()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	current := co.client.store.AccessToken()
	if current != "" && current != stale {
		co.lock.Unlock()
		return current, nil
	}
	if co.failedErr != nil && current == "" && stale == co.failedToken {
		err := co.failedErr
		co.lock.Unlock()
		return "", err
	}

	co.state = stateRefreshing
	co.lock.Unlock()

	token, err := co.refresh(ctx)

	co.lock.Lock()
	pending := co.pending
	co.pending = nil
	co.state = stateIdle
	if err != nil {
		co.failedToken, co.failedErr = stale, err
	} else {
		co.failedToken, co.failedErr = "", nil
	}
	co.lock.Unlock()

	for _, ch := range pending {
		ch <- refreshResult{token: token, err: err}
	}
	return token, err
}

// refresh stores the new token pair before returning, so no waiter can observe a stale store.
// On failure the session is cleared and the user is sent to the login page.
func (co *coordinator) refresh(ctx context.Context) (string, error) {
	c := co.client

	var next session.Session
	var err error
	if c.group != nil {
		next, err = c.group.Do(ctx, c.store.RefreshToken(), co.exchange)
	} else {
		next, err = co.exchange(ctx, c.store.RefreshToken())
	}
	if err == nil {
		err = c.store.Save(next)
	}

	if err != nil {
		c.recorder.RecordRefresh(metrics.RefreshFailed)
		c.logger.Warn().Err(err).Msg("session refresh failed, signing out")
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("failed to clear session")
		}
		c.navigator.RedirectToLogin()
		return "", &SessionExpiredError{Err: err}
	}

	c.recorder.RecordRefresh(metrics.RefreshSucceeded)
	c.logger.Debug().Msg("session refreshed")
	return next.AccessToken, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// exchange calls the refresh endpoint directly, bypassing the 401 handling in do.
// It is detached from the caller's cancellation because queued callers share its outcome.
func (co *coordinator) exchange(ctx context.Context, refreshToken string) (session.Session, error) {
	c := co.client
	if refreshToken == "" {
		return session.Session{}, ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return session.Session{}, fmt.Errorf("apiclient: encode refresh request: %w", err)
	}

	target := c.endpoint(RefreshPath, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return session.Session{}, fmt.Errorf("apiclient: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordClientResponse(http.MethodPost, 0)
		return session.Session{}, newTransportError(http.MethodPost, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return session.Session{}, newTransportError(http.MethodPost, target, err)
	}
	c.recorder.RecordClientResponse(http.MethodPost, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		return session.Session{}, newAPIError(resp.StatusCode, data)
	}

	var pair tokenPair
	if err := decodeEnvelope(resp.StatusCode, data, &pair); err != nil {
		return session.Session{}, err
	}
	if pair.AccessToken == "" {
		return session.Session{}, fmt.Errorf("apiclient: refresh response has no accessToken")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return session.Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
