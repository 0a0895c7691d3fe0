package config

import (
	"strconv"
	"time"
)

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetAuthRateLimit() (requests int, per time.Duration)
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetEnableRateLimiting is on unless RATE_LIMIT is set to a false value.
func (Security) GetEnableRateLimiting() bool {
	enabled, err := strconv.ParseBool(GetEnv("RATE_LIMIT", "true"))
	if err != nil {
		return true
	}
	return enabled
}

func (Security) GetAuthRateLimit() (int, time.Duration) {
	return 10, time.Minute
}
