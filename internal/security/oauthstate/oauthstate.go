// Package oauthstate issues and consumes the signed, single-use state
// parameter of the social account OAuth flow.
package oauthstate

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"travelsec/internal/storage"
	"travelsec/internal/storage/memory"
	"travelsec/pkg/errors"
	"travelsec/pkg/metrics"
)

const (
	// DefaultMaxAge bounds how long an issued state stays usable
	DefaultMaxAge = 10 * time.Minute

	stateVersion    = 1
	minNonceLength  = 16
	replayKeyPrefix = "social-oauth-state:"
)

// Reason explains a rejected state
type Reason string

const (
	ReasonSecretMissing    Reason = "state_secret_missing"
	ReasonMalformed        Reason = "state_malformed"
	ReasonSignatureInvalid Reason = "state_signature_invalid"
	ReasonPayloadInvalid   Reason = "state_payload_invalid"
	ReasonExpired          Reason = "state_expired"
	ReasonReplayed         Reason = "state_replayed"
	ReasonUnavailable      Reason = "state_replay_check_unavailable"
)

// SecretSource supplies the signing secret at call time
type SecretSource interface {
	OAuthStateSecret() string
	IsProduction() bool
}

// Result is the outcome of Consume
type Result struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

type claims struct {
	Version   int   `json:"v"`
	Timestamp int64 `json:"ts"`
	jwt.RegisteredClaims
}

// Manager issues and consumes OAuth state tokens
type Manager struct {
	secrets SecretSource
	nonces  storage.NonceStore
	maxAge  time.Duration
	clock   storage.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Manager
type Option func(*Manager)

// WithMaxAge overrides DefaultMaxAge
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// WithClock overrides the time source
func WithClock(c storage.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records consume decisions
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New creates a manager. A nil nonce store uses a process-local one.
func New(secrets SecretSource, nonces storage.NonceStore, opts ...Option) *Manager {
	m := &Manager{
		secrets: secrets,
		nonces:  nonces,
		maxAge:  DefaultMaxAge,
		clock:   storage.SystemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.nonces == nil {
		m.nonces = memory.NewNonceStore(storage.DefaultNonceSweepThreshold, m.clock)
	}
	m.logger = m.logger.With("component", "oauthstate")
	return m
}

func (m *Manager) secret() string {
	return strings.TrimSpace(m.secrets.OAuthStateSecret())
}

// Issue returns a signed state bound to userID
func (m *Manager) Issue(userID string) (string, error) {
	secret := m.secret()
	if secret == "" {
		msg := "oauth state secret is not configured"
		if m.secrets.IsProduction() {
			msg = "oauth state secret is required in production"
		}
		return "", errors.NewError(errors.ErrorTypeConfiguration, msg)
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.NewError(errors.ErrorTypeBadRequest, "user id is required")
	}

	now := m.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Version:   stateVersion,
		Timestamp: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			ID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
			IssuedAt: jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.NewError(errors.ErrorTypeInternal, "failed to sign oauth state").WithCause(err)
	}
	return signed, nil
}

// Consume validates state and claims its nonce. A state is accepted once.
func (m *Manager) Consume(ctx context.Context, state string) Result {
	res := m.consume(ctx, state)
	m.metrics.ObserveGuard("oauth_state", res.OK)
	if !res.OK {
		m.logger.Debug("OAuth state rejected", "reason", res.Reason)
	}
	return res
}

func (m *Manager) consume(ctx context.Context, state string) Result {
	secret := m.secret()
	if secret == "" {
		return Result{Reason: ReasonSecretMissing}
	}

	state = strings.TrimSpace(state)
	if state == "" {
		return Result{Reason: ReasonMalformed}
	}

	var c claims
	_, err := jwt.ParseWithClaims(state, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Result{Reason: ReasonSignatureInvalid}
		default:
			return Result{Reason: ReasonMalformed}
		}
	}

	userID := strings.TrimSpace(c.Subject)
	nonce := strings.TrimSpace(c.ID)
	if c.Version != stateVersion || userID == "" || len(nonce) < minNonceLength || c.Timestamp <= 0 {
		return Result{Reason: ReasonPayloadInvalid}
	}

	age := m.clock.Now().UnixMilli() - c.Timestamp
	if math.Abs(float64(age)) > float64(m.maxAge.Milliseconds()) {
		return Result{Reason: ReasonExpired}
	}

	claimed, err := m.nonces.Claim(ctx, replayKeyPrefix+nonce, m.nonceTTL())
	if err != nil {
		m.logger.Error("OAuth state nonce claim failed", "error", err)
		return Result{Reason: ReasonUnavailable}
	}
	if !claimed {
		return Result{Reason: ReasonReplayed}
	}

	return Result{OK: true, UserID: userID}
}

func (m *Manager) nonceTTL() time.Duration {
	secs := int64(math.Ceil(m.maxAge.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
