// Package apiclient calls the portal API on behalf of a signed-in user.
//
// Requests carry the stored access token. When the API answers 401 the client obtains a new
// token once for every request that failed at the same time, and each request is replayed
// with the new token. A request is replayed at most once.
package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout applies to every request unless WithTimeout or WithHTTPClient says otherwise.
const DefaultTimeout = 30 * time.Second

// RefreshPath is the API endpoint that exchanges a refresh token for a new token pair.
const RefreshPath = "/auth/refresh-token"

// Navigator sends the user to the login page once their session cannot be recovered.
type Navigator interface {
	RedirectToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) RedirectToLogin() { f() }

// Recorder receives client side metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordClientResponse(method string, status int)
	RecordRefresh(outcome string)
	RecordQueued()
}

type noopRecorder struct{}

func (noopRecorder) RecordClientResponse(string, int) {}
func (noopRecorder) RecordRefresh(string)             {}
func (noopRecorder) RecordQueued()                    {}

// Client is the HTTP client core. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	store      *session.Store
	refresher  *coordinator
	group      *RefreshGroup
	navigator  Navigator
	recorder   Recorder
	logger     zerolog.Logger
	nowFunc    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient shares an http.Client between Clients. A zero Timeout is replaced by the
// client timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithRefreshGroup shares refresh token exchanges with every other Client using g.
func WithRefreshGroup(g *RefreshGroup) Option {
	return func(c *Client) {
		c.group = g
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithNowFunc overrides the clock used for token expiry checks (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New creates a Client for the API rooted at baseURL (e.g. "http://localhost:5000/api").
func New(baseURL string, store *session.Store, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[apiclient New] invalid base URL %q", baseURL)
	}
	if store == nil {
		return nil, fmt.Errorf("[apiclient New] session store is required")
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		timeout:   DefaultTimeout,
		store:     store,
		navigator: NavigatorFunc(func() {}),
		recorder:  noopRecorder{},
		logger:    log.Logger,
		nowFunc:   time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	switch {
	case c.httpClient == nil:
		c.httpClient = &http.Client{Timeout: c.timeout}
	case c.httpClient.Timeout == 0:
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	c.refresher = newCoordinator(c)
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
