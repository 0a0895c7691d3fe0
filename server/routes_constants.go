package server

// Route path constants
// All API routes are defined here to ensure consistency and prevent typos
const (
	RouteAPIPrefix = "/api"

	// Auth Routes
	RouteAuthRegister = RouteAPIPrefix + "/auth/register"
	RouteAuthLogin    = RouteAPIPrefix + "/auth/login"
	RouteAuthRefresh  = RouteAPIPrefix + "/auth/refresh-token"
	RouteAuthLogout   = RouteAPIPrefix + "/auth/logout"
	RouteAuthMe       = RouteAPIPrefix + "/auth/me"

	// Catalogue Routes
	RoutePrograms = RouteAPIPrefix + "/programs"
	RouteProgram  = RouteAPIPrefix + "/programs/{slug}"

	// Enquiry Routes
	RouteLeads = RouteAPIPrefix + "/leads"

	// Upload Routes
	RouteUploads = RouteAPIPrefix + "/uploads"

	// Admin Routes
	RouteAdminLeads = RouteAPIPrefix + "/admin/leads"
	RouteAdminUsers = RouteAPIPrefix + "/admin/users"

	// System Routes
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"
	RouteMetrics       = "/metrics"
)
