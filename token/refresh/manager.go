package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/go-edu-portal/internal/config"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo    Repo
	config  config.OAuthConfig
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc sets the clock used for issue times and expiry (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.OAuthConfig, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		config:  cfg,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token for userID and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength()) // Configured length (default: 32 bytes = 256 bits)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Rotate exchanges token for a new one owned by the same user. The presented token is deleted
// whether or not it is still valid, so each refresh token can be used once.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, string, error) {
	stored, err := m.repo.Get(token)
	if err != nil {
		return nil, "", errors.ErrInvalidRefreshToken
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, "", errors.ErrInvalidRefreshToken
	}
	if m.IsExpired(stored) {
		return nil, "", errors.ErrRefreshTokenExpired
	}

	next, err := m.Create(stored.UserID)
	if err != nil {
		return nil, "", err
	}
	return stored, next, nil
}

// Get retrieves a refresh token from storage
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// RevokeUser removes every refresh token held by userID
func (m *Manager) RevokeUser(userID string) (int, error) {
	return m.repo.DeleteByUserID(userID)
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}
