// Package cronauth authorizes scheduled automation requests. A caller
// proves itself with a shared secret (bearer or header) or with an HMAC
// signature over the request, and every accepted request is claimed once
// in a replay store.
package cronauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"travelsec/internal/security/timingsafe"
	"travelsec/internal/storage"
	"travelsec/internal/storage/memory"
	"travelsec/pkg/metrics"
)

const (
	// DefaultSecretHeader carries a shared secret in header mode
	DefaultSecretHeader = "x-cron-secret"
	// DefaultIdempotencyHeader carries a caller chosen replay key
	DefaultIdempotencyHeader = "x-cron-idempotency-key"
	// DefaultMaxClockSkew bounds the age of a signed request
	DefaultMaxClockSkew = 5 * time.Minute
	// DefaultReplayWindow is how long a fingerprint stays claimed
	DefaultReplayWindow = 10 * time.Minute

	HeaderTimestamp       = "x-cron-ts"
	HeaderTimestampLegacy = "x-cron-timestamp"
	HeaderNonce           = "x-cron-nonce"
	HeaderSignature       = "x-cron-signature"

	replayKeyPrefix = "cron-replay:"
	bearerPrefix    = "Bearer "
)

// Mode is how a request proved itself
type Mode string

const (
	ModeBearer    Mode = "bearer"
	ModeHeader    Mode = "header"
	ModeSignature Mode = "signature"
)

// Result reasons
const (
	ReasonUnauthorized = "Unauthorized cron request"
	ReasonReplay       = "Replay detected"
	ReasonAuthorized   = "Authorized"
	ReasonUnavailable  = "Replay check unavailable"
)

// SecretSource supplies the accepted secrets at call time
type SecretSource interface {
	CronSecrets() []string
	SigningSecret() string
}

// Result is the outcome of Authorize
type Result struct {
	Authorized bool   `json:"authorized"`
	Status     int    `json:"status"`
	Reason     string `json:"reason"`
	Mode       Mode   `json:"mode,omitempty"`
	ReplayKey  string `json:"replayKey,omitempty"`
}

// Gate checks automation requests
type Gate struct {
	secrets           SecretSource
	replay            storage.NonceStore
	secretHeader      string
	idempotencyHeader string
	maxClockSkew      time.Duration
	replayWindow      time.Duration
	replayProtection  bool
	clock             storage.Clock
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

// Option configures a Gate
type Option func(*Gate)

// WithSecretHeader overrides the header read in header mode
func WithSecretHeader(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.secretHeader = name
		}
	}
}

// WithIdempotencyHeader overrides the replay key header
func WithIdempotencyHeader(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.idempotencyHeader = name
		}
	}
}

// WithMaxClockSkew sets the accepted signed timestamp drift
func WithMaxClockSkew(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.maxClockSkew = d
		}
	}
}

// WithReplayWindow sets how long fingerprints stay claimed
func WithReplayWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.replayWindow = d
		}
	}
}

// WithReplayProtection toggles fingerprint claiming. Gates in front of
// high-frequency decision endpoints disable it.
func WithReplayProtection(enabled bool) Option {
	return func(g *Gate) { g.replayProtection = enabled }
}

// WithClock overrides the time source
func WithClock(c storage.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMetrics records guard decisions
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New creates a gate. A nil replay store uses a process-local one.
func New(secrets SecretSource, replay storage.NonceStore, opts ...Option) *Gate {
	g := &Gate{
		secrets:           secrets,
		replay:            replay,
		secretHeader:      DefaultSecretHeader,
		idempotencyHeader: DefaultIdempotencyHeader,
		maxClockSkew:      DefaultMaxClockSkew,
		replayWindow:      DefaultReplayWindow,
		replayProtection:  true,
		clock:             storage.SystemClock{},
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.replay == nil {
		g.replay = memory.NewNonceStore(storage.DefaultNonceSweepThreshold, g.clock)
	}
	g.logger = g.logger.With("component", "cronauth")
	return g
}

// IsHeader reports whether value matches a configured cron secret
func (g *Gate) IsHeader(value string) bool {
	return timingsafe.EqualAny(strings.TrimSpace(value), g.secrets.CronSecrets())
}

// IsBearer reports whether an Authorization header carries a cron secret
func (g *Gate) IsBearer(authorization string) bool {
	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok {
		return false
	}
	return g.IsHeader(token)
}

func (g *Gate) configured() bool {
	return len(g.secrets.CronSecrets()) > 0 || g.secrets.SigningSecret() != ""
}

func timestampHeader(h http.Header) string {
	if ts := h.Get(HeaderTimestamp); ts != "" {
		return ts
	}
	return h.Get(HeaderTimestampLegacy)
}

// Sign returns the hex signature of a request
func Sign(secret, ts, nonce, method, path string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s:%s", ts, nonce, method, path)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Gate) isSigned(r *http.Request) bool {
	secret := g.secrets.SigningSecret()
	if secret == "" {
		return false
	}

	ts := timestampHeader(r.Header)
	signature := r.Header.Get(HeaderSignature)
	nonce := r.Header.Get(HeaderNonce)
	if ts == "" || signature == "" || nonce == "" {
		return false
	}
	tsMs, err := strconv.ParseFloat(ts, 64)
	if err != nil || math.IsInf(tsMs, 0) || math.IsNaN(tsMs) {
		return false
	}

	now := float64(g.clock.Now().UnixMilli())
	if math.Abs(now-tsMs) > float64(g.maxClockSkew.Milliseconds()) {
		return false
	}

	return timingsafe.Equal(signature, Sign(secret, ts, nonce, r.Method, r.URL.Path))
}

// fingerprint prefers an explicit idempotency key, then the nonce, then
// the timestamp or current minute.
func (g *Gate) fingerprint(r *http.Request, mode Mode) string {
	path := r.URL.Path
	if key := strings.TrimSpace(r.Header.Get(g.idempotencyHeader)); key != "" {
		return fmt.Sprintf("%s:%s:%s", mode, path, key)
	}
	if nonce := strings.TrimSpace(r.Header.Get(HeaderNonce)); nonce != "" {
		return fmt.Sprintf("%s:%s:%s", mode, path, nonce)
	}
	ts := timestampHeader(r.Header)
	if ts == "" {
		ts = strconv.FormatInt(g.clock.Now().UnixMilli()/60_000, 10)
	}
	return fmt.Sprintf("%s:%s:%s:%s", mode, path, r.Method, ts)
}

// replayTTL rounds the window up to whole seconds
func (g *Gate) replayTTL() time.Duration {
	secs := int64(math.Ceil(g.replayWindow.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Authorize checks r and, unless replay protection is off, claims its
// replay fingerprint
func (g *Gate) Authorize(ctx context.Context, r *http.Request) Result {
	res := g.authorize(ctx, r)
	g.metrics.ObserveGuard("cron", res.Authorized)
	return res
}

func (g *Gate) authorize(ctx context.Context, r *http.Request) Result {
	denied := Result{Status: http.StatusUnauthorized, Reason: ReasonUnauthorized}
	if !g.configured() {
		return denied
	}

	var mode Mode
	switch {
	case g.IsBearer(r.Header.Get("Authorization")):
		mode = ModeBearer
	case g.IsHeader(r.Header.Get(g.secretHeader)):
		mode = ModeHeader
	case g.isSigned(r):
		mode = ModeSignature
	default:
		return denied
	}

	if !g.replayProtection {
		return Result{Authorized: true, Status: http.StatusOK, Reason: ReasonAuthorized, Mode: mode}
	}

	replayKey := g.fingerprint(r, mode)
	claimed, err := g.replay.Claim(ctx, replayKeyPrefix+replayKey, g.replayTTL())
	if err != nil {
		g.logger.Error("Replay claim failed", "mode", mode, "error", err)
		return Result{Status: http.StatusServiceUnavailable, Reason: ReasonUnavailable, Mode: mode, ReplayKey: replayKey}
	}
	if !claimed {
		g.logger.Warn("Cron replay rejected", "mode", mode, "path", r.URL.Path)
		return Result{Status: http.StatusConflict, Reason: ReasonReplay, Mode: mode, ReplayKey: replayKey}
	}

	return Result{Authorized: true, Status: http.StatusOK, Reason: ReasonAuthorized, Mode: mode, ReplayKey: replayKey}
}
