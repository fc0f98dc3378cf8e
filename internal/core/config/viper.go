package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrSecretInConfig is returned when a config file carries the backend token.
var ErrSecretInConfig = errors.New("backend token not allowed in config files (use ZS_BACKEND_TOKEN environment variable)")

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned value.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultServerConfig())

	v.SetEnvPrefix("ZS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Server: ServerSection{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsPort:    v.GetInt("server.metrics_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxSessions:    v.GetInt("server.max_sessions"),
			SessionTTL:     v.GetDuration("server.session_ttl"),
		},
		Location: LocationSection{
			APIURL:       v.GetString("location.api_url"),
			Country:      v.GetString("location.country"),
			FetchTimeout: v.GetDuration("location.fetch_timeout"),
			CacheTTL:     v.GetDuration("location.cache_ttl"),
			RedisURL:     v.GetString("location.redis_url"),
			LoadDelay:    v.GetDuration("location.load_delay"),
		},
		Selection: SelectionSection{
			BulkChunkSize:      v.GetInt("selection.bulk_chunk_size"),
			BulkChunkThreshold: v.GetInt("selection.bulk_chunk_threshold"),
		},
		Backend: BackendSection{
			APIURL:         v.GetString("backend.api_url"),
			RequestTimeout: v.GetDuration("backend.request_timeout"),
		},
		Database: DatabaseSection{
			URL: v.GetString("database.url"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d *ServerConfig) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_sessions", d.Server.MaxSessions)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL.String())

	v.SetDefault("location.api_url", d.Location.APIURL)
	v.SetDefault("location.country", d.Location.Country)
	v.SetDefault("location.fetch_timeout", d.Location.FetchTimeout.String())
	v.SetDefault("location.cache_ttl", d.Location.CacheTTL.String())
	v.SetDefault("location.redis_url", d.Location.RedisURL)
	v.SetDefault("location.load_delay", d.Location.LoadDelay.String())

	v.SetDefault("selection.bulk_chunk_size", d.Selection.BulkChunkSize)
	v.SetDefault("selection.bulk_chunk_threshold", d.Selection.BulkChunkThreshold)

	v.SetDefault("backend.api_url", d.Backend.APIURL)
	v.SetDefault("backend.request_timeout", d.Backend.RequestTimeout.String())

	v.SetDefault("database.url", d.Database.URL)
}

// Validate checks port ranges and that sizes and durations are positive.
func (c *ServerConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	// 0 disables the metrics listener.
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535, got %d", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("server.metrics_port must differ from server.port (%d)", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", c.Server.RequestTimeout)
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive, got %d", c.Server.MaxSessions)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive, got %v", c.Server.SessionTTL)
	}
	if c.Location.APIURL == "" {
		return fmt.Errorf("location.api_url is required")
	}
	if c.Location.Country == "" {
		return fmt.Errorf("location.country is required")
	}
	if c.Location.FetchTimeout <= 0 {
		return fmt.Errorf("location.fetch_timeout must be positive, got %v", c.Location.FetchTimeout)
	}
	if c.Location.CacheTTL < 0 {
		return fmt.Errorf("location.cache_ttl must not be negative, got %v", c.Location.CacheTTL)
	}
	if c.Location.LoadDelay < 0 {
		return fmt.Errorf("location.load_delay must not be negative, got %v", c.Location.LoadDelay)
	}
	if c.Selection.BulkChunkSize <= 0 {
		return fmt.Errorf("selection.bulk_chunk_size must be positive, got %d", c.Selection.BulkChunkSize)
	}
	if c.Selection.BulkChunkThreshold <= 0 {
		return fmt.Errorf("selection.bulk_chunk_threshold must be positive, got %d", c.Selection.BulkChunkThreshold)
	}
	if c.Backend.APIURL == "" {
		return fmt.Errorf("backend.api_url is required")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be positive, got %v", c.Backend.RequestTimeout)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets. Only the
// config file is inspected; ZS_BACKEND_TOKEN in the environment is expected.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range []string{"backend.token", "backend_token", "token"} {
		if v.InConfig(key) {
			return ErrSecretInConfig
		}
	}
	return nil
}
