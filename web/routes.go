package web

// Page paths. The guard's prefix lists decide which of them need a session.
const (
	PathHome           = "/"
	PathPrograms       = "/programs"
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathForgotPassword = "/forgot-password"
	PathLogout         = "/logout"
	PathDashboard      = "/dashboard"
	PathProfile        = "/profile"
	PathSettings       = "/settings"
	PathAdmin          = "/admin"
	PathContact        = "/contact"
)

func (s *Site) initRoutes() {
	// PUBLIC
	s.RegisterRouteFunc("GET /{$}", s.page(s.HomeHandler()))
	s.RegisterRouteFunc("GET "+PathPrograms, s.page(s.ProgramsHandler()))
	s.RegisterRouteFunc("POST "+PathContact, s.page(s.ContactHandler()))

	// AUTH
	s.RegisterRouteFunc("GET "+PathLogin, s.page(s.LoginPageHandler()))
	s.RegisterRouteFunc("POST "+PathLogin, s.page(s.LoginSubmitHandler()))
	s.RegisterRouteFunc("GET "+PathRegister, s.page(s.RegisterPageHandler()))
	s.RegisterRouteFunc("POST "+PathRegister, s.page(s.RegisterSubmitHandler()))
	s.RegisterRouteFunc("GET "+PathForgotPassword, s.page(s.StaticPageHandler("forgot-password.html", "Forgot password")))
	s.RegisterRouteFunc("POST "+PathLogout, s.page(s.LogoutHandler()))

	// SIGNED IN
	s.RegisterRouteFunc("GET "+PathDashboard, s.page(s.DashboardHandler()))
	s.RegisterRouteFunc("GET "+PathProfile, s.page(s.ProfileHandler()))
	s.RegisterRouteFunc("GET "+PathSettings, s.page(s.StaticPageHandler("settings.html", "Settings")))
	s.RegisterRouteFunc("GET "+PathAdmin, s.page(s.AdminHandler()))

	s.RegisterRouteFunc("/", s.page(s.NotFoundHandler()))
}
