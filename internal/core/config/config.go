// Package config provides configuration management for zipscope services.
package config

import (
	"os"
	"strings"
	"time"
)

// BackendTokenEnv names the environment variable holding the fallback bearer
// token for task submission. Secrets never come from config files.
const BackendTokenEnv = "ZS_BACKEND_TOKEN"

// ServerSection configures the gRPC and metrics listeners and session store.
type ServerSection struct {
	Host           string
	Port           int
	MetricsPort    int
	RequestTimeout time.Duration
	MaxSessions    int
	SessionTTL     time.Duration
}

// LocationSection configures the location dataset provider.
type LocationSection struct {
	APIURL       string
	Country      string
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	RedisURL     string
	LoadDelay    time.Duration
}

// SelectionSection tunes bulk selection chunking.
type SelectionSection struct {
	BulkChunkSize      int
	BulkChunkThreshold int
}

// BackendSection configures the task submission backend.
type BackendSection struct {
	APIURL         string
	RequestTimeout time.Duration
}

// DatabaseSection configures the optional task history database.
type DatabaseSection struct {
	URL string
}

// ServerConfig is the full service configuration.
type ServerConfig struct {
	Server    ServerSection
	Location  LocationSection
	Selection SelectionSection
	Backend   BackendSection
	Database  DatabaseSection
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Host:           "0.0.0.0",
			Port:           50051,
			MetricsPort:    9090,
			RequestTimeout: 30 * time.Second,
			MaxSessions:    1024,
			SessionTTL:     30 * time.Minute,
		},
		Location: LocationSection{
			APIURL:       "http://localhost:8000/api",
			Country:      "US",
			FetchTimeout: 15 * time.Second,
			CacheTTL:     time.Hour,
		},
		Selection: SelectionSection{
			BulkChunkSize:      5000,
			BulkChunkThreshold: 10000,
		},
		Backend: BackendSection{
			APIURL:         "http://localhost:8080",
			RequestTimeout: 30 * time.Second,
		},
	}
}

// BackendToken returns the bearer token from ZS_BACKEND_TOKEN, or "".
func BackendToken() string {
	return strings.TrimSpace(os.Getenv(BackendTokenEnv))
}
