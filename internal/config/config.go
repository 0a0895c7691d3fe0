package config

import "time"

type Config interface {
	EnvConfig
	ClientConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetWebPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetLogLevel() string
	GetLogFile() string
	GetAdminEmail() string
	GetAdminPassword() string
	GetEnv() string
}

// ClientConfig configures the API client used by the site.
type ClientConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Client
	Cors
	OAuth
	Security
}

func New() Config {
	return mainConfig{}
}
