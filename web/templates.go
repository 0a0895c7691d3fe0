package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/rs/zerolog"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("2 Jan 2006")
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// pageData is what every template receives.
type pageData struct {
	AppName     string
	Title       string
	Path        string
	Identity    *identity.Identity
	Flash       string
	Error       string
	FieldErrors map[string]string
	Form        map[string]string
	Data        any
}

func (s *Site) newPageData(r *http.Request, v *visit, title string) pageData {
	return pageData{
		AppName:  s.config.GetAppName(),
		Title:    title,
		Path:     r.URL.Path,
		Identity: v.Decision.Identity,
		Form:     map[string]string{},
	}
}

// parsePages pairs every page template with the layout.
func parsePages() (map[string]*template.Template, error) {
	fsys, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, err
	}
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutTemplate {
			continue
		}
		tmpl, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(fsys, layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// render executes into a buffer first so a template error never leaves a half written page.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		zerolog.Ctx(r.Context()).Error().Str("template", name).Msg("unknown template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
