package config

import (
	"time"
)

// Config holds the security sidecar configuration
type Config struct {
	Server    Server    `yaml:"server"`
	Redis     *Redis    `yaml:"redis,omitempty"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Security  Security  `yaml:"security"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server configuration
type Server struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     int    `yaml:"readTimeout"`
	WriteTimeout    int    `yaml:"writeTimeout"`
	ShutdownTimeout int    `yaml:"shutdownTimeout"`
	TLS             *TLS   `yaml:"tls,omitempty"`
}

// TLS configuration
type TLS struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"certFile"`
	KeyFile    string `yaml:"keyFile"`
	MinVersion string `yaml:"minVersion,omitempty"`
}

// Redis configuration. URL, when set, takes precedence over Host/Port.
type Redis struct {
	URL            string    `yaml:"url"`
	Host           string    `yaml:"host"`
	Port           int       `yaml:"port"`
	Password       string    `yaml:"password"`
	DB             int       `yaml:"db"`
	MaxActive      int       `yaml:"maxActive"`
	MaxIdle        int       `yaml:"maxIdle"`
	ConnectTimeout int       `yaml:"connectTimeout"`
	ReadTimeout    int       `yaml:"readTimeout"`
	WriteTimeout   int       `yaml:"writeTimeout"`
	IdleTimeout    int       `yaml:"idleTimeout"`
	TLS            *RedisTLS `yaml:"tls,omitempty"`

	Cluster      bool     `yaml:"cluster"`
	ClusterNodes []string `yaml:"clusterNodes"`

	Sentinel      bool     `yaml:"sentinel"`
	SentinelNodes []string `yaml:"sentinelNodes"`
	MasterName    string   `yaml:"masterName"`
}

// RedisTLS configuration
type RedisTLS struct {
	Enabled            bool   `yaml:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
}

// RateLimit configuration
type RateLimit struct {
	// BackendTimeout bounds one distributed check, in milliseconds
	BackendTimeout int `yaml:"backendTimeout"`
	// SweepThreshold is the local counter map size that triggers eviction
	SweepThreshold int `yaml:"sweepThreshold"`
	// NonceSweepThreshold is the local nonce map size that triggers eviction
	NonceSweepThreshold int `yaml:"nonceSweepThreshold"`
	// TrustProxy keys IP limits on X-Forwarded-For. Enable only behind a
	// proxy that overwrites the header.
	TrustProxy bool `yaml:"trustProxy"`
	// Routes limits sidecar endpoints
	Routes []RouteLimit `yaml:"routes"`
	// Cost overrides the built-in cost plan table, category -> tier -> limits
	Cost map[string]map[string]CostLimit `yaml:"cost"`
}

// RouteLimit applies a limit to requests whose path matches Path
type RouteLimit struct {
	Path   string `yaml:"path"`
	Prefix string `yaml:"prefix"`
	Limit  int    `yaml:"limit"`
	// Window in seconds
	Window int `yaml:"window"`
	// Key is one of "ip", "path", "ip_path"
	Key string `yaml:"key"`
}

// CostLimit is the burst and daily allowance of one plan
type CostLimit struct {
	BurstPerMinute int `yaml:"burstPerMinute"`
	Daily          int `yaml:"daily"`
}

// Security holds secrets and gate settings. Empty values fall back to the
// legacy environment names read by the secret store.
type Security struct {
	// Environment is "production" or anything else
	Environment            string   `yaml:"environment"`
	CronSecrets            []string `yaml:"cronSecrets"`
	SigningSecret          string   `yaml:"signingSecret"`
	TokenEncryptionKey     string   `yaml:"tokenEncryptionKey"`
	TokenKeyFallbackSecret string   `yaml:"tokenKeyFallbackSecret"`
	CSRFToken              string   `yaml:"csrfToken"`
	OAuthStateSecret       string   `yaml:"oauthStateSecret"`
	// MaxClockSkew for signed cron requests, in seconds
	MaxClockSkew int `yaml:"maxClockSkew"`
	// ReplayWindow for cron replay fingerprints, in seconds
	ReplayWindow int `yaml:"replayWindow"`
	// OAuthStateMaxAge in seconds
	OAuthStateMaxAge int `yaml:"oauthStateMaxAge"`
}

// Telemetry configuration
type Telemetry struct {
	Enabled bool    `yaml:"enabled"`
	Service string  `yaml:"service"`
	Version string  `yaml:"version"`
	Tracing Tracing `yaml:"tracing"`
	Metrics Metrics `yaml:"metrics"`
}

// Tracing configuration
type Tracing struct {
	Enabled      bool              `yaml:"enabled"`
	Endpoint     string            `yaml:"endpoint"`
	Headers      map[string]string `yaml:"headers"`
	SampleRate   float64           `yaml:"sampleRate"`
	MaxBatchSize int               `yaml:"maxBatchSize"`
	BatchTimeout int               `yaml:"batchTimeout"`
}

// Metrics configuration
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Duration helpers

// BackendTimeoutDuration returns the backend timeout
func (r RateLimit) BackendTimeoutDuration() time.Duration {
	return time.Duration(r.BackendTimeout) * time.Millisecond
}

// WindowDuration returns the route window
func (r RouteLimit) WindowDuration() time.Duration {
	return time.Duration(r.Window) * time.Second
}

// MaxClockSkewDuration returns the signed request skew tolerance
func (s Security) MaxClockSkewDuration() time.Duration {
	return time.Duration(s.MaxClockSkew) * time.Second
}

// ReplayWindowDuration returns the replay fingerprint lifetime
func (s Security) ReplayWindowDuration() time.Duration {
	return time.Duration(s.ReplayWindow) * time.Second
}

// OAuthStateMaxAgeDuration returns the OAuth state lifetime
func (s Security) OAuthStateMaxAgeDuration() time.Duration {
	return time.Duration(s.OAuthStateMaxAge) * time.Second
}
