package jwt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/jrsteele09/go-edu-portal/token/keys"
)

// Verifier validates access tokens presented to the API: signature, issuer, audience, expiry
// and revocation.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
	revoked  RevokedTokenCache
}

// NewVerifier checks tokens against the signer's public keys. revoked may be nil.
func NewVerifier(issuer, audience string, signer keys.Signer, revoked RevokedTokenCache, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	keySet := &oidc.StaticKeySet{PublicKeys: signer.PublicKeys()}
	return &Verifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:             audience,
			SupportedSigningAlgs: []string{oidc.RS256},
			Now:                  now,
		}),
		revoked: revoked,
	}
}

// Verify returns the claims of a valid token. Expired tokens fail with errors.ErrTokenExpired,
// everything else with errors.ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*identity.Claims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, errors.Wrapf(errors.ErrTokenExpired, "verify access token")
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidToken, strings.TrimPrefix(err.Error(), "oidc: "))
	}

	claims := &identity.Claims{}
	if err := token.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing user claims", errors.ErrInvalidToken)
	}
	if v.revoked != nil && claims.ID != "" && v.revoked.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: token revoked", errors.ErrInvalidToken)
	}
	return claims, nil
}
