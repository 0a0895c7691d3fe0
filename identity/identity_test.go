package identity_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-edu-portal/identity"
	"github.com/stretchr/testify/require"
)

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-checked"))
	require.NoError(t, err)
	return raw
}

func TestDecode(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("all claims", func(t *testing.T) {
		raw := unsignedToken(t, jwt.MapClaims{
			"userId":    "u-1",
			"email":     "ada@example.com",
			"firstName": "Ada",
			"role":      identity.RoleAdmin,
			"exp":       exp.Unix(),
		})

		id, err := identity.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, "u-1", id.UserID)
		require.Equal(t, "ada@example.com", id.Email)
		require.Equal(t, "Ada", id.FirstName)
		require.True(t, id.IsAdmin())
		require.Equal(t, exp.Unix(), id.ExpiresAtEpochSeconds())
	})

	t.Run("first name is optional", func(t *testing.T) {
		raw := unsignedToken(t, jwt.MapClaims{
			"userId": "u-1", "email": "a@b.c", "role": identity.RoleUser, "exp": exp.Unix(),
		})
		id, err := identity.Decode(raw)
		require.NoError(t, err)
		require.Empty(t, id.FirstName)
		require.False(t, id.IsAdmin())
	})

	t.Run("signature is not verified", func(t *testing.T) {
		raw := unsignedToken(t, jwt.MapClaims{
			"userId": "u-1", "email": "a@b.c", "role": identity.RoleUser, "exp": exp.Unix(),
		})
		tampered := raw[:len(raw)-4] + "AAAA"
		_, err := identity.Decode(tampered)
		require.NoError(t, err)
	})
}

func TestDecode_MissingClaims(t *testing.T) {
	full := jwt.MapClaims{
		"userId": "u-1", "email": "a@b.c", "role": identity.RoleUser, "exp": time.Now().Add(time.Hour).Unix(),
	}

	for _, claim := range []string{"userId", "email", "role", "exp"} {
		t.Run(claim, func(t *testing.T) {
			claims := jwt.MapClaims{}
			for k, v := range full {
				if k != claim {
					claims[k] = v
				}
			}

			_, err := identity.Decode(unsignedToken(t, claims))
			var idErr *identity.Error
			require.ErrorAs(t, err, &idErr)
			require.Equal(t, identity.ErrCodeMissingClaim, idErr.Code)
			require.Equal(t, claim, idErr.Claim)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"two segments": "abc.def",
		"bad base64":   "eyJhbGciOiJIUzI1NiJ9.%%%.sig",
		"not json":     "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".sig",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := identity.Decode(raw)
			var idErr *identity.Error
			require.ErrorAs(t, err, &idErr)
			require.Equal(t, identity.ErrCodeMalformed, idErr.Code)
		})
	}
}

func TestIdentity_Expired(t *testing.T) {
	now := time.Now()
	id := &identity.Identity{ExpiresAt: now}

	require.True(t, id.Expired(now))
	require.True(t, id.Expired(now.Add(time.Second)))
	require.False(t, id.Expired(now.Add(-time.Second)))
}
