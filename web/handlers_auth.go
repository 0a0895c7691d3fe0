package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/auth"
	"github.com/jrsteele09/go-edu-portal/guard"
	"github.com/jrsteele09/go-edu-portal/session"
	"github.com/rs/zerolog"
)

// LoginPageHandler displays the login form (GET /login)
func (s *Site) LoginPageHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		data := s.newPageData(r, v, "Log in")
		data.Form["redirect"] = r.URL.Query().Get(guard.RedirectParam)
		if r.URL.Query().Get("registered") != "" {
			data.Flash = "Your account is ready."
		}
		s.render(w, r, http.StatusOK, "login.html", data)
	}
}

// LoginSubmitHandler signs in through the API and stores the issued tokens in cookies.
func (s *Site) LoginSubmitHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := auth.LoginRequest{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
		}
		redirect := r.PostFormValue(guard.RedirectParam)

		var sess auth.Session
		if err := v.Client.Post(r.Context(), "/auth/login", req, &sess); err != nil {
			data := s.newPageData(r, v, "Log in")
			data.Form["email"] = req.Email
			data.Form["redirect"] = redirect
			s.renderAPIError(w, r, "login.html", data, err)
			return
		}

		if err := v.Session.Save(session.Session{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to store session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("user_id", sess.User.ID).Msg("signed in")
		http.Redirect(w, r, guard.SafeRedirect(redirect), http.StatusSeeOther)
	}
}

func (s *Site) RegisterPageHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		s.render(w, r, http.StatusOK, "register.html", s.newPageData(r, v, "Create an account"))
	}
}

// RegisterSubmitHandler creates the account and signs the new user straight in.
func (s *Site) RegisterSubmitHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := auth.RegisterRequest{
			Email:           strings.TrimSpace(r.PostFormValue("email")),
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
			FirstName:       strings.TrimSpace(r.PostFormValue("firstName")),
			LastName:        strings.TrimSpace(r.PostFormValue("lastName")),
		}

		var sess auth.Session
		if err := v.Client.Post(r.Context(), "/auth/register", req, &sess); err != nil {
			data := s.newPageData(r, v, "Create an account")
			data.Form["email"] = req.Email
			data.Form["firstName"] = req.FirstName
			data.Form["lastName"] = req.LastName
			s.renderAPIError(w, r, "register.html", data, err)
			return
		}

		if err := v.Session.Save(session.Session{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}); err != nil {
			// The account exists, so fall back to a normal login.
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to store session")
			http.Redirect(w, r, PathLogin+"?registered=1", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, guard.DashboardPath, http.StatusSeeOther)
	}
}

// LogoutHandler revokes the tokens at the API, then clears the cookies whatever the API said.
// The browser returns to the page it signed out from when that page is public.
func (s *Site) LogoutHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		if refreshToken := v.Session.RefreshToken(); v.Decision.Authenticated() || refreshToken != "" {
			body := map[string]string{"refreshToken": refreshToken}
			if err := v.Client.Post(r.Context(), "/auth/logout", body, nil); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("api logout failed")
			}
		}
		if err := v.Session.Clear(); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to clear session")
		}
		http.Redirect(w, r, afterLogout(r), http.StatusSeeOther)
	}
}

func afterLogout(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return PathHome
	}
	target := guard.SafeRedirect(ref.RequestURI())
	path, _, _ := strings.Cut(target, "?")
	if guard.IsProtected(path) {
		return PathHome
	}
	return target
}

// renderAPIError re-renders a form with the API's message and per-field errors.
func (s *Site) renderAPIError(w http.ResponseWriter, r *http.Request, name string, data pageData, err error) {
	status := http.StatusServiceUnavailable
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		data.FieldErrors = apiErr.FieldErrors
	} else {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("api call failed")
	}
	data.Error = apiclient.Message(err)
	s.render(w, r, status, name, data)
}
