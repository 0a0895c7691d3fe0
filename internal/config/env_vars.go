package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar    = "PORT"
	webPortEnvVar = "WEB_PORT"
	appNameVar    = "APP_NAME"
	folderEnvVar  = "FOLDER"
	baseURLVar    = "BASE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetPort is the listen address of the API backend.
func (EnvVars) GetPort() string {
	return listenAddr(GetEnv(portEnvVar, "5000"))
}

// GetWebPort is the listen address of the server-rendered site.
func (EnvVars) GetWebPort() string {
	return listenAddr(GetEnv(webPortEnvVar, "3000"))
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Edu Portal")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetBaseURL returns the public URL of the API backend (e.g., "https://api.example.com").
// It is used as the issuer of access tokens.
func (EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:5000"), "/")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv("LOG_LEVEL", "info")
}

func (EnvVars) GetLogFile() string {
	return GetEnv("LOG_FILE", "")
}

func (EnvVars) GetAdminEmail() string {
	return GetEnv("ADMIN_EMAIL", "admin@eduportal.local")
}

func (EnvVars) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func listenAddr(port string) string {
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
