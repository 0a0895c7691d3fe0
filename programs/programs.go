// Package programs is the course catalogue shown on the public site.
package programs

import (
	"strings"
	"time"
)

// Level is how much prior knowledge a program assumes.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

type Program struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	Level         Level     `json:"level"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	DurationWeeks int       `json:"durationWeeks"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Filter narrows a catalogue listing. Zero values match everything.
type Filter struct {
	Category string
	Level    Level
	Search   string // case-insensitive match on title and summary
}

// Matches reports whether p is a published program selected by f.
func (f Filter) Matches(p *Program) bool {
	if !p.Published {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Level != "" && p.Level != f.Level {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Summary), q)
	}
	return true
}

// Slugify turns a title into a URL segment: "Data Science 101" becomes "data-science-101".
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

type Repo interface {
	Upsert(program *Program) error
	GetBySlug(slug string) (*Program, error)
	List(filter Filter, offset, limit int) ([]*Program, int, error)
}
