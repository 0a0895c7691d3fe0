package server

import (
	"net/http"

	"github.com/jrsteele09/go-edu-portal/internal/metrics"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware(s.limiter.Middleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.limiter.Middleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth)...))

	// CATALOGUE
	s.RegisterRouteHandler("GET "+RoutePrograms, ChainMiddleware(s.ProgramsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteProgram, ChainMiddleware(s.ProgramHandler(), s.APIMiddleware()...))

	// ENQUIRIES
	s.RegisterRouteHandler("POST "+RouteLeads, ChainMiddleware(s.CreateLeadHandler(), s.APIMiddleware(s.limiter.Middleware)...))

	// UPLOADS
	s.RegisterRouteHandler("POST "+RouteUploads, ChainMiddleware(s.UploadHandler(), s.APIMiddleware(s.RequireAuth)...))

	// ADMIN
	s.RegisterRouteHandler("GET "+RouteAdminLeads, ChainMiddleware(s.AdminLeadsHandler(), s.APIMiddleware(s.RequireAuth, s.RequireAdmin)...))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersHandler(), s.APIMiddleware(s.RequireAuth, s.RequireAdmin)...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix+"/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))

	// SYSTEM
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.gatherer))

	s.RegisterRouteHandler(RouteAPIPrefix+"/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	}, s.APIMiddleware()...))
}
