package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-edu-portal/internal/config"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/jrsteele09/go-edu-portal/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-edu-portal/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func setupTestFixture(t *testing.T) (*refresh.Manager, refresh.Repo, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, config.OAuth{}, refresh.WithNowFunc(func() time.Time { return now }))
	return m, repo, &now
}

func TestCreate(t *testing.T) {
	m, _, now := setupTestFixture(t)

	token, err := m.Create("u1")
	require.NoError(t, err)
	require.Len(t, token, 64)

	stored, err := m.Get(token)
	require.NoError(t, err)
	require.Equal(t, "u1", stored.UserID)
	require.Equal(t, *now, stored.Iat)

	other, err := m.Create("u1")
	require.NoError(t, err)
	require.NotEqual(t, token, other)
	_, err = m.Get(token)
	require.NoError(t, err, "a second device keeps the first token valid")
}

func TestRotate(t *testing.T) {
	m, _, _ := setupTestFixture(t)
	first, err := m.Create("u1")
	require.NoError(t, err)

	stored, next, err := m.Rotate(first)
	require.NoError(t, err)
	require.Equal(t, "u1", stored.UserID)
	require.NotEqual(t, first, next)

	_, _, err = m.Rotate(first)
	require.ErrorIs(t, err, errors.ErrInvalidRefreshToken, "tokens are single use")

	_, _, err = m.Rotate("unknown")
	require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
}

func TestRotate_Expired(t *testing.T) {
	m, _, now := setupTestFixture(t)
	token, err := m.Create("u1")
	require.NoError(t, err)

	*now = now.Add(config.OAuth{}.GetRefreshTokenExpiry() + time.Second)
	_, _, err = m.Rotate(token)
	require.ErrorIs(t, err, errors.ErrRefreshTokenExpired)

	_, err = m.Get(token)
	require.Error(t, err)
}

func TestRevokeUser(t *testing.T) {
	m, repo, _ := setupTestFixture(t)
	for range 3 {
		_, err := m.Create("u1")
		require.NoError(t, err)
	}
	keep, err := m.Create("u2")
	require.NoError(t, err)

	n, err := m.RevokeUser("u1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	all, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, keep, all[0].Token)
}
