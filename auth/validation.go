package auth

import (
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-edu-portal/users"
)

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validator provides centralized validation for account requests.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRegistration returns nil or a *ValidationError naming every bad field.
func (v *Validator) ValidateRegistration(req *RegisterRequest) error {
	fields := map[string]string{}

	if strings.TrimSpace(req.FirstName) == "" {
		fields["firstName"] = "First name is required"
	}
	if msg := v.emailProblem(req.Email); msg != "" {
		fields["email"] = msg
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		fields["password"] = capitalise(err.Error())
	} else if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		fields["confirmPassword"] = "Passwords do not match"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ValidateLogin only checks presence; credential errors are reported without detail.
func (v *Validator) ValidateLogin(req *LoginRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = "Email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (v *Validator) emailProblem(email string) string {
	email = users.NormaliseEmail(email)
	if email == "" {
		return "Email is required"
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "Email must be a valid email address"
	}
	return ""
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
