package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/jrsteele09/go-edu-portal/token/keys"
	"github.com/jrsteele09/go-edu-portal/users"
)

// Creator issues access tokens for signed-in users
type Creator struct {
	issuer   string
	audience string
	expiry   time.Duration
	signer   keys.Signer
	nowFunc  func() time.Time
}

type CreatorOption func(*Creator)

// WithCreatorNowFunc sets the clock used for iat and exp (primarily for testing)
func WithCreatorNowFunc(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.nowFunc = now
	}
}

// NewCreator creates a new JWT creator
func NewCreator(issuer, audience string, expiry time.Duration, signer keys.Signer, options ...CreatorOption) *Creator {
	c := &Creator{
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
		signer:   signer,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// CreateAccessToken creates a signed access token for user and returns it with its expiry
func (c *Creator) CreateAccessToken(user *users.User) (string, time.Time, error) {
	now := c.nowFunc()
	exp := now.Add(c.expiry)

	claims := &identity.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Role:      string(user.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    c.issuer,                        // The issuer of the token
			Subject:   user.ID,                         // The user the token was issued to
			Audience:  jwtlib.ClaimStrings{c.audience}, // The API the token is intended for
			IssuedAt:  jwtlib.NewNumericDate(now),      // Issued At
			ExpiresAt: jwtlib.NewNumericDate(exp),      // Expiry
			ID:        uuid.New().String(),             // Unique token ID for revocation
		},
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, exp, nil
}
