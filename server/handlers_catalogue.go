package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-edu-portal/leads"
	"github.com/jrsteele09/go-edu-portal/programs"
	"github.com/rs/zerolog"
)

// ProgramsHandler lists published programs. Supports ?category, ?level, ?q, ?page and ?limit.
func (s *Server) ProgramsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := programs.Filter{
			Category: q.Get("category"),
			Level:    programs.Level(q.Get("level")),
			Search:   q.Get("q"),
		}
		p := parsePagination(r)

		items, total, err := s.repos.Programs.List(filter, p.offset(), p.limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, p, items, total)
	}
}

func (s *Server) ProgramHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		program, err := s.repos.Programs.GetBySlug(r.PathValue("slug"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "", program)
	}
}

// CreateLeadHandler stores an enquiry from the public contact form. Free text is stripped of
// markup before validation.
func (s *Server) CreateLeadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lead leads.Lead
		if err := decodeBody(w, r, &lead); err != nil {
			writeError(w, r, err)
			return
		}

		s.sanitizer.Sanitize(&lead)
		if fields := lead.Validate(); fields != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Message: "Validation failed", Errors: fields})
			return
		}
		if lead.ProgramSlug != "" {
			if _, err := s.repos.Programs.GetBySlug(lead.ProgramSlug); err != nil {
				writeJSON(w, http.StatusBadRequest, errorEnvelope{
					Message: "Validation failed",
					Errors:  map[string]string{"programSlug": "Unknown program"},
				})
				return
			}
		}

		lead.ID = ""
		lead.CreatedAt = s.nowFunc()
		if err := s.repos.Leads.Create(&lead); err != nil {
			writeError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("lead_id", lead.ID).Msg("lead received")
		writeData(w, http.StatusCreated, "Thank you, we will be in touch soon", lead)
	}
}

func (s *Server) AdminLeadsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parsePagination(r)
		items, total, err := s.repos.Leads.List(p.offset(), p.limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, p, items, total)
	}
}

func (s *Server) AdminUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parsePagination(r)
		items, total, err := s.repos.Users.List(p.offset(), p.limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, p, items, total)
	}
}

// JWKSHandler publishes the access token verification keys.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.signer.GetJWKS()
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, jwks)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, "", map[string]string{
			"status": "ok",
			"uptime": strconv.FormatFloat(time.Since(started).Seconds(), 'f', 0, 64) + "s",
		})
	}
}
