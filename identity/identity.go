// Package identity derives who is signed in from an access token without contacting the API.
//
// Tokens are decoded, not verified. The result drives navigation only; the API verifies the
// signature on every protected call.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims is the payload the API puts into access tokens.
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the decoded view of a signed-in user.
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	Role      string
	ExpiresAt time.Time
}

var parser = jwt.NewParser()

// Decode reads the payload segment of rawToken. userId, email, role and exp are required.
func Decode(rawToken string) (*Identity, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return nil, &Error{Code: ErrCodeMalformed, Err: err}
	}

	switch {
	case claims.UserID == "":
		return nil, &Error{Code: ErrCodeMissingClaim, Claim: "userId"}
	case claims.Email == "":
		return nil, &Error{Code: ErrCodeMissingClaim, Claim: "email"}
	case claims.Role == "":
		return nil, &Error{Code: ErrCodeMissingClaim, Claim: "role"}
	case claims.ExpiresAt == nil:
		return nil, &Error{Code: ErrCodeMissingClaim, Claim: "exp"}
	}

	return &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Expired reports whether the token's expiry is at or before now.
func (i *Identity) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i *Identity) ExpiresAtEpochSeconds() int64 {
	return i.ExpiresAt.Unix()
}
