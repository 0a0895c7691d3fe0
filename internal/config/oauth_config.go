package config

import "time"

type OAuthConfig interface {
	GetAudience() string
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "edu-portal")
}

func (OAuth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (OAuth) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
