package web

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-edu-portal/apiclient"
	"github.com/jrsteele09/go-edu-portal/guard"
	"github.com/jrsteele09/go-edu-portal/leads"
	"github.com/jrsteele09/go-edu-portal/programs"
	"github.com/jrsteele09/go-edu-portal/users"
	"github.com/rs/zerolog"
)

const (
	featuredPrograms  = 3
	programsPerPage   = 3
	maxCataloguePages = 10
	adminPageSize     = 20
)

type catalogueData struct {
	Programs []programs.Program
	Total    int
	Pages    int
	HasMore  bool
	Category string
	Query    string
}

// MorePages is the ?pages value of the "Load more" link.
func (d catalogueData) MorePages() int { return d.Pages + 1 }

// HomeHandler shows featured programs and the contact form.
func (s *Site) HomeHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		data := s.newPageData(r, v, "Home")
		if r.URL.Query().Get("contact") == "sent" {
			data.Flash = "Thank you, we will be in touch soon."
		}
		s.renderHome(w, r, v, http.StatusOK, data)
	}
}

func (s *Site) renderHome(w http.ResponseWriter, r *http.Request, v *visit, status int, data pageData) {
	page, err := apiclient.GetPage[programs.Program](r.Context(), v.Client, "/programs",
		url.Values{"limit": {strconv.Itoa(featuredPrograms)}})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to load featured programs")
	} else {
		data.Data = catalogueData{Programs: page.Data, Total: page.Meta.Total}
	}
	s.render(w, r, status, "home.html", data)
}

// ProgramsHandler is the public catalogue with ?category and ?q. "Load more" grows ?pages, and
// the handler walks that many pages so the list keeps everything already shown.
func (s *Site) ProgramsHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		data := s.newPageData(r, v, "Programs")

		query := url.Values{}
		category := strings.TrimSpace(r.URL.Query().Get("category"))
		search := strings.TrimSpace(r.URL.Query().Get("q"))
		if category != "" {
			query.Set("category", category)
		}
		if search != "" {
			query.Set("q", search)
		}
		pages := 1
		if n, err := strconv.Atoi(r.URL.Query().Get("pages")); err == nil && n > 1 {
			pages = min(n, maxCataloguePages)
		}

		pager := apiclient.NewPager[programs.Program](v.Client, "/programs", query, programsPerPage)
		var list []programs.Program
		for fetched := 0; fetched < pages && pager.HasMore(); fetched++ {
			items, err := pager.Next(r.Context())
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				data.Error = apiclient.Message(err)
				s.render(w, r, http.StatusBadGateway, "programs.html", data)
				return
			}
			list = append(list, items...)
		}

		data.Data = catalogueData{
			Programs: list,
			Total:    pager.Meta().Total,
			Pages:    pages,
			HasMore:  pager.HasMore(),
			Category: category,
			Query:    search,
		}
		s.render(w, r, http.StatusOK, "programs.html", data)
	}
}

// ContactHandler submits the contact form as a lead.
func (s *Site) ContactHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		lead := leads.Lead{
			Name:        r.PostFormValue("name"),
			Email:       strings.TrimSpace(r.PostFormValue("email")),
			Phone:       r.PostFormValue("phone"),
			ProgramSlug: r.PostFormValue("programSlug"),
			Message:     r.PostFormValue("message"),
			Source:      "website",
		}

		if err := v.Client.Post(r.Context(), "/leads", lead, nil); err != nil {
			data := s.newPageData(r, v, "Home")
			data.Form = map[string]string{
				"name":        lead.Name,
				"email":       lead.Email,
				"phone":       lead.Phone,
				"programSlug": lead.ProgramSlug,
				"message":     lead.Message,
			}
			data.Error = apiclient.Message(err)
			status := http.StatusBadGateway
			var apiErr *apiclient.APIError
			if errors.As(err, &apiErr) {
				status = apiErr.StatusCode
				data.FieldErrors = apiErr.FieldErrors
			}
			s.renderHome(w, r, v, status, data)
			return
		}
		http.Redirect(w, r, PathHome+"?contact=sent#contact", http.StatusSeeOther)
	}
}

// DashboardHandler greets the signed-in user with their profile from the API.
func (s *Site) DashboardHandler() pageHandler {
	return s.profilePage("dashboard.html", "Dashboard")
}

func (s *Site) ProfileHandler() pageHandler {
	return s.profilePage("profile.html", "Profile")
}

func (s *Site) profilePage(name, title string) pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		var me users.User
		if err := v.Client.Get(r.Context(), "/auth/me", nil, &me); err != nil {
			if sessionLost(w, r, v, err) {
				return
			}
			data := s.newPageData(r, v, title)
			data.Error = apiclient.Message(err)
			s.render(w, r, http.StatusBadGateway, name, data)
			return
		}
		data := s.newPageData(r, v, title)
		data.Data = &me
		s.render(w, r, http.StatusOK, name, data)
	}
}

type adminData struct {
	Leads     []leads.Lead
	LeadsMeta apiclient.Meta
	Users     []users.User
	UserTotal int
}

// AdminHandler lists recent leads and users. The API enforces the admin role again, so a
// token whose role claim was tampered with gets a 403 here and is sent to the dashboard.
func (s *Site) AdminHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		data := s.newPageData(r, v, "Admin")

		query := url.Values{"limit": {strconv.Itoa(adminPageSize)}}
		if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 1 {
			query.Set("page", strconv.Itoa(p))
		}
		leadsPage, err := apiclient.GetPage[leads.Lead](r.Context(), v.Client, "/admin/leads", query)
		if err == nil {
			var usersPage *apiclient.Page[users.User]
			usersPage, err = apiclient.GetPage[users.User](r.Context(), v.Client, "/admin/users",
				url.Values{"limit": {strconv.Itoa(adminPageSize)}})
			if err == nil {
				data.Data = adminData{
					Leads:     leadsPage.Data,
					LeadsMeta: leadsPage.Meta,
					Users:     usersPage.Data,
					UserTotal: usersPage.Meta.Total,
				}
			}
		}

		if err != nil {
			if sessionLost(w, r, v, err) {
				return
			}
			var apiErr *apiclient.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
				http.Redirect(w, r, guard.DashboardPath, http.StatusFound)
				return
			}
			data.Error = apiclient.Message(err)
			s.render(w, r, http.StatusBadGateway, "admin.html", data)
			return
		}
		s.render(w, r, http.StatusOK, "admin.html", data)
	}
}

// StaticPageHandler renders a template that needs no API data.
func (s *Site) StaticPageHandler(name, title string) pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		s.render(w, r, http.StatusOK, name, s.newPageData(r, v, title))
	}
}

func (s *Site) NotFoundHandler() pageHandler {
	return func(w http.ResponseWriter, r *http.Request, v *visit) {
		s.render(w, r, http.StatusNotFound, "not-found.html", s.newPageData(r, v, "Page not found"))
	}
}
