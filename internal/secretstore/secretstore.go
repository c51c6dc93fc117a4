// Package secretstore resolves the secrets used by the security gates from
// configuration and the legacy environment variable names, and lets them be
// swapped at runtime.
package secretstore

import (
	"os"
	"strings"
	"sync/atomic"

	"travelsec/internal/config"
)

// Legacy environment variable names
const (
	EnvCronSecret             = "CRON_SECRET"
	EnvNotificationCronSecret = "NOTIFICATION_CRON_SECRET"
	EnvCronSigningSecret      = "CRON_SIGNING_SECRET"
	EnvNotificationSigning    = "NOTIFICATION_SIGNING_SECRET"
	EnvTokenEncryptionKey     = "SOCIAL_TOKEN_ENCRYPTION_KEY"
	EnvTokenFallbackSecret    = "META_APP_SECRET"
	EnvOAuthStateSecret       = "SOCIAL_OAUTH_STATE_SECRET"
	EnvNextAuthSecret         = "NEXTAUTH_SECRET"
	EnvCSRFToken              = "ADMIN_MUTATION_CSRF_TOKEN"
	EnvAppEnv                 = "APP_ENV"
	EnvNodeEnv                = "NODE_ENV"
)

// LegacyVariables lists every legacy name the accessor reads
var LegacyVariables = []string{
	EnvCronSecret, EnvNotificationCronSecret, EnvCronSigningSecret, EnvNotificationSigning,
	EnvTokenEncryptionKey, EnvTokenFallbackSecret, EnvOAuthStateSecret, EnvNextAuthSecret,
	EnvCSRFToken, EnvAppEnv, EnvNodeEnv,
}

// Snapshot is an immutable view of the resolved secrets
type Snapshot struct {
	CronSecrets            []string
	SigningSecret          string
	TokenEncryptionKey     string
	TokenKeyFallbackSecret string
	CSRFToken              string
	OAuthStateSecret       string
	Production             bool
}

// LookupFunc reads one environment variable
type LookupFunc func(key string) string

// Accessor serves the current snapshot. It is safe for concurrent use.
type Accessor struct {
	lookup LookupFunc
	snap   atomic.Pointer[Snapshot]
}

// New creates an accessor reading legacy names from the process environment
func New(sec config.Security) *Accessor {
	return NewWithLookup(sec, os.Getenv)
}

// NewWithLookup creates an accessor with a custom environment lookup
func NewWithLookup(sec config.Security, lookup LookupFunc) *Accessor {
	if lookup == nil {
		lookup = func(string) string { return "" }
	}
	a := &Accessor{lookup: lookup}
	a.Update(sec)
	return a
}

// Update rebuilds the snapshot from sec and the environment
func (a *Accessor) Update(sec config.Security) {
	a.snap.Store(a.resolve(sec))
}

// Snapshot returns the current snapshot
func (a *Accessor) Snapshot() *Snapshot {
	return a.snap.Load()
}

func (a *Accessor) resolve(sec config.Security) *Snapshot {
	env := func(key string) string { return strings.TrimSpace(a.lookup(key)) }

	cron := make([]string, 0, len(sec.CronSecrets)+2)
	cron = append(cron, sec.CronSecrets...)
	cron = append(cron, env(EnvCronSecret), env(EnvNotificationCronSecret))

	signing := first(sec.SigningSecret, env(EnvCronSigningSecret), env(EnvNotificationSigning))

	return &Snapshot{
		CronSecrets:            dedupe(cron),
		SigningSecret:          signing,
		TokenEncryptionKey:     first(sec.TokenEncryptionKey, env(EnvTokenEncryptionKey)),
		TokenKeyFallbackSecret: first(sec.TokenKeyFallbackSecret, env(EnvTokenFallbackSecret)),
		CSRFToken:              first(sec.CSRFToken, env(EnvCSRFToken)),
		OAuthStateSecret:       first(sec.OAuthStateSecret, env(EnvOAuthStateSecret), signing, env(EnvNextAuthSecret)),
		Production: sec.IsProduction() ||
			strings.EqualFold(env(EnvAppEnv), "production") ||
			strings.EqualFold(env(EnvNodeEnv), "production"),
	}
}

// CronSecrets returns the accepted automation secrets
func (a *Accessor) CronSecrets() []string { return a.Snapshot().CronSecrets }

// SigningSecret returns the HMAC secret for signed automation requests
func (a *Accessor) SigningSecret() string { return a.Snapshot().SigningSecret }

// TokenEncryptionKey returns the credential cipher key material
func (a *Accessor) TokenEncryptionKey() string { return a.Snapshot().TokenEncryptionKey }

// TokenKeyFallbackSecret returns the development key fallback
func (a *Accessor) TokenKeyFallbackSecret() string { return a.Snapshot().TokenKeyFallbackSecret }

// CSRFToken returns the mutation token, or ""
func (a *Accessor) CSRFToken() string { return a.Snapshot().CSRFToken }

// OAuthStateSecret returns the OAuth state signing secret
func (a *Accessor) OAuthStateSecret() string { return a.Snapshot().OAuthStateSecret }

// IsProduction reports whether the process runs in production
func (a *Accessor) IsProduction() bool { return a.Snapshot().Production }

// Diagnostics reports which secrets are configured without revealing them
func (a *Accessor) Diagnostics() map[string]bool {
	s := a.Snapshot()
	return map[string]bool{
		"cron_secret_configured":          len(s.CronSecrets) > 0,
		"signing_secret_configured":       s.SigningSecret != "",
		"token_encryption_key_configured": s.TokenEncryptionKey != "",
		"csrf_token_configured":           s.CSRFToken != "",
		"oauth_state_secret_configured":   s.OAuthStateSecret != "",
		"production":                      s.Production,
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
