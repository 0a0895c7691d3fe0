// Package session persists the access/refresh token pair of a signed-in user.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// Storage keys. They match the names the site has always used in client storage.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

var ErrNoSession = errors.New("no session")

// Session is the token pair issued on login and replaced on every refresh.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Storage is a persistent string key/value store.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Store reads and writes a Session through a Storage. One Store owns one user's session.
type Store struct {
	storage Storage
	lock    sync.RWMutex
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Load returns the stored session, or ErrNoSession when there is no access token.
func (s *Store) Load() (Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	access, ok := s.storage.Get(AccessTokenKey)
	if !ok || access == "" {
		return Session{}, ErrNoSession
	}
	refresh, _ := s.storage.Get(RefreshTokenKey)
	return Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Store) AccessToken() string {
	return s.get(AccessTokenKey)
}

func (s *Store) RefreshToken() string {
	return s.get(RefreshTokenKey)
}

func (s *Store) get(key string) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, _ := s.storage.Get(key)
	return v
}

// Save overwrites both tokens.
func (s *Store) Save(sess Session) error {
	if sess.AccessToken == "" {
		return fmt.Errorf("session.Save: %w", ErrNoSession)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.storage.Set(AccessTokenKey, sess.AccessToken); err != nil {
		return fmt.Errorf("session.Save %s: %w", AccessTokenKey, err)
	}
	if sess.RefreshToken == "" {
		if err := s.storage.Delete(RefreshTokenKey); err != nil {
			return fmt.Errorf("session.Save %s: %w", RefreshTokenKey, err)
		}
		return nil
	}
	if err := s.storage.Set(RefreshTokenKey, sess.RefreshToken); err != nil {
		return fmt.Errorf("session.Save %s: %w", RefreshTokenKey, err)
	}
	return nil
}

// Clear removes both tokens. Both deletes are attempted even if the first fails.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return errors.Join(
		s.storage.Delete(AccessTokenKey),
		s.storage.Delete(RefreshTokenKey),
	)
}
