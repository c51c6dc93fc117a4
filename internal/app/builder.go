package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"travelsec/internal/app/factory"
	"travelsec/internal/config"
	"travelsec/internal/health"
	internalmetrics "travelsec/internal/metrics"
	"travelsec/internal/middleware"
	mwmetrics "travelsec/internal/middleware/metrics"
	"travelsec/internal/middleware/recovery"
	"travelsec/internal/secretstore"
	"travelsec/internal/security/cronauth"
	"travelsec/internal/security/csrf"
	"travelsec/internal/security/oauthstate"
	"travelsec/internal/security/tokencipher"
	redisstore "travelsec/internal/storage/redis"
	"travelsec/internal/telemetry"
	"travelsec/pkg/metrics"
	"travelsec/pkg/requestid"
)

// Version is reported by the health endpoint
var Version = "dev"

// Builder builds the sidecar application
type Builder struct {
	config  *config.Config
	logger  *slog.Logger
	lookup  secretstore.LookupFunc
	redis   redis.UniversalClient
	secrets *secretstore.Accessor
}

// NewBuilder creates a new application builder
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	return &Builder{
		config: cfg,
		logger: logger,
	}
}

// WithLookup replaces os.Getenv for legacy secret variables
func (b *Builder) WithLookup(lookup secretstore.LookupFunc) *Builder {
	b.lookup = lookup
	return b
}

// WithRedisClient uses client instead of building one from configuration
func (b *Builder) WithRedisClient(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// Build constructs the server
func (b *Builder) Build() (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWithRegistry(registry)

	if b.lookup != nil {
		b.secrets = secretstore.NewWithLookup(b.config.Security, b.lookup)
	} else {
		b.secrets = secretstore.New(b.config.Security)
	}

	client, err := b.redisClient()
	if err != nil {
		return nil, fmt.Errorf("creating redis client: %w", err)
	}

	controller := factory.CreateController(b.config.RateLimit, client, m, b.logger)
	nonces := factory.CreateNonceStore(b.config.RateLimit, client, b.logger)
	quota := factory.CreateQuota(b.config.RateLimit, controller)

	cipher := tokencipher.New(b.secrets, b.logger, m)

	sec := b.config.Security
	gateOpts := []cronauth.Option{
		cronauth.WithMaxClockSkew(sec.MaxClockSkewDuration()),
		cronauth.WithReplayWindow(sec.ReplayWindowDuration()),
		cronauth.WithLogger(b.logger),
		cronauth.WithMetrics(m),
	}
	// Decision endpoints are called many times per job with the same
	// secret, so only mutating cron routes claim replay fingerprints.
	decisionGate := cronauth.New(b.secrets, nonces, append(gateOpts, cronauth.WithReplayProtection(false))...)
	cronGate := cronauth.New(b.secrets, nonces, gateOpts...)
	guard := csrf.New(b.secrets,
		csrf.WithLogger(b.logger),
		csrf.WithMetrics(m),
	)
	states := oauthstate.New(b.secrets, nonces,
		oauthstate.WithMaxAge(sec.OAuthStateMaxAgeDuration()),
		oauthstate.WithLogger(b.logger),
		oauthstate.WithMetrics(m),
	)

	tel, telMetrics, err := factory.CreateTelemetry(b.config.Telemetry, registry, b.logger)
	if err != nil {
		return nil, err
	}

	var pinger health.Pinger
	if client != nil {
		pinger = redisstore.NewClientAdapter(client)
	}
	checker := factory.CreateHealthChecker(pinger, cipher, m)
	healthHandler := health.NewHandler(checker, Version, controller.Backend)

	a := &api{
		controller: controller,
		quota:      quota,
		cipher:     cipher,
		states:     states,
		secrets:    b.secrets,
		tel:        tel,
		otel:       telMetrics,
		logger:     b.logger.With("component", "api"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/livez", healthHandler.Live).Methods(http.MethodGet)
	if b.config.Telemetry.Metrics.Enabled {
		path := b.config.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, internalmetrics.Handler(registry)).Methods(http.MethodGet)
	}

	// Route limits run after authentication so anonymous traffic cannot
	// drain an authenticated caller's budget.
	rl := factory.CreateRateLimitMiddleware(b.config.RateLimit.Routes, b.config.RateLimit.TrustProxy, controller, b.logger)

	automation := router.NewRoute().Subrouter()
	automation.Use(decisionGate.Middleware)
	if rl != nil {
		automation.Use(mux.MiddlewareFunc(rl))
	}
	automation.HandleFunc("/v1/admission/check", a.checkAdmission).Methods(http.MethodPost)
	automation.HandleFunc("/v1/admission/quota", a.checkQuota).Methods(http.MethodPost)
	automation.HandleFunc("/v1/credentials/seal", a.seal).Methods(http.MethodPost)
	automation.HandleFunc("/v1/credentials/open", a.open).Methods(http.MethodPost)
	automation.HandleFunc("/v1/oauth/state", a.issueState).Methods(http.MethodPost)
	automation.HandleFunc("/v1/oauth/state/consume", a.consumeState).Methods(http.MethodPost)
	automation.HandleFunc("/admin/security/diagnostics", a.diagnostics).Methods(http.MethodGet)

	admin := router.NewRoute().Subrouter()
	admin.Use(guard.Middleware, cronGate.Middleware)
	if rl != nil {
		admin.Use(mux.MiddlewareFunc(rl))
	}
	admin.HandleFunc("/admin/ratelimit/reset", a.resetLimit).Methods(http.MethodPost)

	router.Use(telemetry.NewMiddleware(tel, telMetrics).WrapHTTP)
	router.Use(mux.MiddlewareFunc(mwmetrics.Middleware(m)))

	handler := middleware.Chain(
		recovery.Default(b.logger),
		requestid.Middleware,
		middleware.Logging(b.logger),
	)(router)

	return &Server{
		config:     b.config,
		handler:    handler,
		logger:     b.logger,
		secrets:    b.secrets,
		controller: controller,
		nonces:     nonces,
		telemetry:  tel,
		redis:      client,
	}, nil
}

// redisClient returns the injected client, or builds one when Redis is
// configured. An unreachable server is logged and left to the fallback.
func (b *Builder) redisClient() (redis.UniversalClient, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	if b.config.Redis == nil {
		b.logger.Warn("Redis not configured, rate limits and replay checks are per process")
		return nil, nil
	}

	client, err := factory.CreateRedisClient(b.config.Redis, b.logger)
	if err != nil {
		return nil, err
	}
	timeout := b.config.RateLimit.BackendTimeoutDuration()
	if timeout <= 0 {
		timeout = ratelimitPingTimeout
	}
	if err := factory.PingRedis(context.Background(), client, timeout); err != nil {
		b.logger.Warn("Redis unreachable at startup, using local fallback until it recovers", "error", err)
	}
	return client, nil
}
