package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"travelsec/pkg/errors"
)

// Loader loads configuration from file
type Loader struct {
	path       string
	envEnabled bool
}

// NewLoader creates a config loader. An empty path loads the embedded defaults.
func NewLoader(path string) *Loader {
	return &Loader{
		path:       path,
		envEnabled: true,
	}
}

// WithEnvVars enables or disables environment variable loading
func (l *Loader) WithEnvVars(enabled bool) *Loader {
	l.envEnabled = enabled
	return l
}

// Load reads path on top of the embedded defaults, applies TRAVELSEC_*
// overrides and validates the result.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load loads the configuration
func (l *Loader) Load() (*Config, error) {
	cfg, err := LoadDefault()
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeConfiguration, "failed to parse default config").WithCause(err)
	}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "failed to read config file").WithCause(err)
		}
		// Routes from the file replace the defaults instead of merging by index
		cfg.RateLimit.Routes = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "failed to parse config").WithCause(err)
		}
	}

	if l.envEnabled {
		if err := LoadEnv(cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "failed to load env vars").WithCause(err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeBadRequest, "invalid configuration").WithCause(err)
	}

	return cfg, nil
}

var routeKeys = map[string]bool{"": true, "ip": true, "path": true, "ip_path": true}

// Validate checks a configuration for values the service cannot run with
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.TLS != nil && cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("tls requires certFile and keyFile")
		}
	}

	if r := cfg.Redis; r != nil {
		if r.Cluster && r.Sentinel {
			return fmt.Errorf("redis cannot be both cluster and sentinel")
		}
		if r.Cluster && len(r.ClusterNodes) == 0 {
			return fmt.Errorf("redis cluster requires clusterNodes")
		}
		if r.Sentinel && (len(r.SentinelNodes) == 0 || r.MasterName == "") {
			return fmt.Errorf("redis sentinel requires sentinelNodes and masterName")
		}
	}

	if cfg.RateLimit.BackendTimeout < 0 {
		return fmt.Errorf("rateLimit.backendTimeout must not be negative")
	}

	for i, route := range cfg.RateLimit.Routes {
		if route.Path == "" {
			return fmt.Errorf("rate limit route %d: path is required", i)
		}
		if route.Limit <= 0 {
			return fmt.Errorf("rate limit route %d: limit must be positive", i)
		}
		if route.Window <= 0 {
			return fmt.Errorf("rate limit route %d: window must be positive", i)
		}
		if !routeKeys[route.Key] {
			return fmt.Errorf("rate limit route %d: unknown key %q", i, route.Key)
		}
	}

	for category, tiers := range cfg.RateLimit.Cost {
		for tier, limit := range tiers {
			if limit.BurstPerMinute <= 0 || limit.Daily <= 0 {
				return fmt.Errorf("cost limit %s/%s must be positive", category, tier)
			}
		}
	}

	if cfg.Security.MaxClockSkew < 0 || cfg.Security.ReplayWindow < 0 || cfg.Security.OAuthStateMaxAge < 0 {
		return fmt.Errorf("security durations must not be negative")
	}

	return nil
}

// IsProduction reports whether the configured environment is production
func (s Security) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), "production")
}
