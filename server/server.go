package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-edu-portal/auth"
	"github.com/jrsteele09/go-edu-portal/internal/config"
	"github.com/jrsteele09/go-edu-portal/internal/metrics"
	"github.com/jrsteele09/go-edu-portal/leads"
	"github.com/jrsteele09/go-edu-portal/programs"
	tokenjwt "github.com/jrsteele09/go-edu-portal/token/jwt"
	"github.com/jrsteele09/go-edu-portal/token/keys"
	"github.com/jrsteele09/go-edu-portal/token/refresh"
	"github.com/jrsteele09/go-edu-portal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const signingKeyID = "edu-portal-1"

// Repos holds all repository dependencies for the Server
type Repos struct {
	Users    users.UserRepo
	Refresh  refresh.Repo
	Programs programs.Repo
	Leads    leads.Repo
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	repos     Repos
	auth      *auth.Service
	signer    keys.Signer
	verifier  *tokenjwt.Verifier
	limiter   *RateLimiter
	metrics   *metrics.Collector
	gatherer  prometheus.Gatherer
	sanitizer *leads.Sanitizer
	uploadDir string
	nowFunc   func() time.Time
}

type Option func(*Server)

// WithSigner replaces the signing key loaded from the data folder.
func WithSigner(signer keys.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithRegistry publishes metrics to reg instead of the default Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics.NewCollector(reg)
		s.gatherer = reg
	}
}

// WithNowFunc sets the clock used for tokens (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, repos Repos, options ...Option) (*Server, error) {
	if repos.Users == nil || repos.Refresh == nil || repos.Programs == nil || repos.Leads == nil {
		return nil, fmt.Errorf("[Server New] all repositories are required")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		repos:     repos,
		sanitizer: leads.NewSanitizer(),
		uploadDir: filepath.Join(cfg.GetDataFolder(), "uploads"),
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = metrics.NewCollector(prometheus.DefaultRegisterer)
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.signer == nil {
		keyPair, err := keys.LoadOrGenerate(filepath.Join(cfg.GetDataFolder(), "keys", "signing.pem"), signingKeyID)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to load signing key: %w", err)
		}
		s.signer = keys.NewKeyPairSigner(keyPair)
	}

	revoked := tokenjwt.NewInMemoryRevokedTokenCache()
	issuer, audience := cfg.GetBaseURL(), cfg.GetAudience()
	creator := tokenjwt.NewCreator(issuer, audience, cfg.GetAccessTokenExpiry(), s.signer, tokenjwt.WithCreatorNowFunc(s.nowFunc))
	s.verifier = tokenjwt.NewVerifier(issuer, audience, s.signer, revoked, s.nowFunc)
	refreshManager := refresh.NewManager(repos.Refresh, cfg, refresh.WithNowFunc(s.nowFunc))

	authService, err := auth.NewService(auth.Repos{Users: repos.Users}, creator, refreshManager,
		auth.WithNowTime(s.nowFunc), auth.WithRevocation(revoked))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth service: %w", err)
	}
	s.auth = authService

	requests, per := cfg.GetAuthRateLimit()
	s.limiter = NewRateLimiter(requests, per, cfg.GetEnableRateLimiting())

	if _, err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops background work.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
