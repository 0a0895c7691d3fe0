// Package leads holds enquiries sent from the public contact form.
package leads

import (
	"html"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxNameLength    = 100
	maxMessageLength = 2000
	maxPhoneLength   = 30
)

type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	ProgramSlug string    `json:"programSlug,omitempty"`
	Message     string    `json:"message"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FieldErrors maps a field name to the first problem found with it.
type FieldErrors map[string]string

// Sanitizer strips markup from free text. It is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text removes every tag and collapses surrounding whitespace. Entities produced by the policy
// are decoded again so the stored text is plain; templates escape it on output.
func (s *Sanitizer) Text(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// Sanitize cleans every free-text field of l in place.
func (s *Sanitizer) Sanitize(l *Lead) {
	l.Name = s.Text(l.Name)
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	l.Phone = s.Text(l.Phone)
	l.ProgramSlug = strings.TrimSpace(l.ProgramSlug)
	l.Message = s.Text(l.Message)
	l.Source = s.Text(l.Source)
}

// Validate checks a sanitized lead. It returns nil when the lead can be stored.
func (l *Lead) Validate() FieldErrors {
	errs := FieldErrors{}
	switch {
	case l.Name == "":
		errs["name"] = "Name is required"
	case utf8.RuneCountInString(l.Name) > maxNameLength:
		errs["name"] = "Name is too long"
	}

	if l.Email == "" {
		errs["email"] = "Email is required"
	} else if addr, err := mail.ParseAddress(l.Email); err != nil || addr.Address != l.Email {
		errs["email"] = "Email must be a valid email address"
	}

	if utf8.RuneCountInString(l.Phone) > maxPhoneLength {
		errs["phone"] = "Phone number is too long"
	}

	switch {
	case l.Message == "":
		errs["message"] = "Message is required"
	case utf8.RuneCountInString(l.Message) > maxMessageLength:
		errs["message"] = "Message is too long"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

type Repo interface {
	Create(lead *Lead) error
	// List returns leads newest first.
	List(offset, limit int) ([]*Lead, int, error)
}
