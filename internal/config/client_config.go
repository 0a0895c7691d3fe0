package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLVar     = "API_BASE_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"

	defaultRequestTimeout = 30 * time.Second
)

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetAPIBaseURL() string {
	return strings.TrimSuffix(GetEnv(apiBaseURLVar, "http://localhost:5000/api"), "/")
}

// GetRequestTimeout accepts Go duration syntax ("15s", "1m"). Invalid or non-positive
// values fall back to the default.
func (Client) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(requestTimeoutVar, ""))
	if err != nil || d <= 0 {
		return defaultRequestTimeout
	}
	return d
}
