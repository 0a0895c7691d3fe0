// Package web is the server-rendered portal site. Every page request runs the route guard
// against the session held in the browser's cookies, and pages read their data from the API
// through a client bound to that session.
package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/internal/config"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

type Site struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	pages      map[string]*template.Template
	httpClient *http.Client
	recorder   apiclient.Recorder
	nowFunc    func() time.Time
	refreshes  *apiclient.RefreshGroup // shared by every visit, keyed by refresh token
}

type Option func(*Site)

// WithHTTPClient shares hc between the per-request API clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Site) {
		s.httpClient = hc
	}
}

// WithRecorder reports API client metrics to r. *metrics.Collector implements it.
func WithRecorder(r apiclient.Recorder) Option {
	return func(s *Site) {
		s.recorder = r
	}
}

// WithNowFunc sets the clock used for token expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Site) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, options ...Option) (*Site, error) {
	s := &Site{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.GetRequestTimeout()}
	}
	s.refreshes = apiclient.NewRefreshGroup(apiclient.DefaultRefreshGrace, s.nowFunc)

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[web New] failed to parse templates: %w", err)
	}
	s.pages = pages

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Site) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Site) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Msgf("[web %-7s] %s", method, path)
	}
}

// secureCookies is off in development so the site works over plain http on localhost.
func (s *Site) secureCookies() bool {
	return s.env != "DEV" && s.env != "TEST"
}
