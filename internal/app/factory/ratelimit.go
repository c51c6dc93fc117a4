package factory

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"travelsec/internal/config"
	"travelsec/internal/middleware"
	mwratelimit "travelsec/internal/middleware/ratelimit"
	"travelsec/internal/ratelimit"
	"travelsec/internal/storage"
	"travelsec/internal/storage/memory"
	redisstore "travelsec/internal/storage/redis"
	"travelsec/pkg/metrics"
)

// CreateController builds the admission controller. A nil client runs
// every check on the local limiter.
func CreateController(cfg config.RateLimit, client redis.UniversalClient, m *metrics.Metrics, logger *slog.Logger) *ratelimit.Controller {
	storeCfg := storage.DefaultConfig()
	if cfg.SweepThreshold > 0 {
		storeCfg.MaxEntries = cfg.SweepThreshold
	}

	var primary ratelimit.Limiter
	if client != nil {
		primary = ratelimit.NewDistributedLimiter(redisstore.NewClientAdapter(client), storeCfg)
	}

	opts := []ratelimit.Option{
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(m),
	}
	if d := cfg.BackendTimeoutDuration(); d > 0 {
		opts = append(opts, ratelimit.WithBackendTimeout(d))
	}

	c := ratelimit.NewController(primary, ratelimit.NewLocalLimiter(storeCfg), opts...)
	logger.Info("Admission controller ready", "backend", c.Backend(), "sweepThreshold", storeCfg.MaxEntries)
	return c
}

// CreateNonceStore returns a Redis-backed replay store that falls back to
// process memory, or memory only when client is nil.
func CreateNonceStore(cfg config.RateLimit, client redis.UniversalClient, logger *slog.Logger) storage.NonceStore {
	local := memory.NewNonceStore(cfg.NonceSweepThreshold, nil)
	if client == nil {
		return local
	}
	return storage.NewFailoverNonceStore(redisstore.NewNonceStore(redisstore.NewClientAdapter(client)), local, cfg.BackendTimeoutDuration(), logger)
}

// CreateRateLimitKeyFunc creates a key function based on configuration.
// trustProxy switches IP keys to the forwarded client address.
func CreateRateLimitKeyFunc(keyType string, trustProxy bool) mwratelimit.KeyFunc {
	switch keyType {
	case "path":
		return mwratelimit.ByPath
	case "ip_path":
		if trustProxy {
			return mwratelimit.ByForwardedIPAndPath
		}
		return mwratelimit.ByIPAndPath
	default:
		if trustProxy {
			return mwratelimit.ByForwardedIP
		}
		return mwratelimit.ByIP
	}
}

// CreateRateLimitMiddleware builds per-route limits, or nil when none
// are configured
func CreateRateLimitMiddleware(routes []config.RouteLimit, trustProxy bool, controller *ratelimit.Controller, logger *slog.Logger) middleware.Middleware {
	rules := make(map[string]*mwratelimit.Config, len(routes))
	for _, route := range routes {
		prefix := route.Prefix
		if prefix == "" {
			prefix = "route:" + route.Path
		}
		rules[route.Path] = &mwratelimit.Config{
			Prefix:     prefix,
			Limit:      route.Limit,
			Window:     route.WindowDuration(),
			KeyFunc:    CreateRateLimitKeyFunc(route.Key, trustProxy),
			Logger:     logger.With("middleware", "ratelimit", "route", route.Path),
			Controller: controller,
		}
		logger.Info("Rate limiting configured for route",
			"path", route.Path,
			"prefix", prefix,
			"limit", route.Limit,
			"window", route.WindowDuration(),
			"trustProxy", trustProxy,
		)
	}

	if len(rules) == 0 {
		return nil
	}
	return mwratelimit.PerRoute(rules)
}

// CreateQuota builds the cost quota, overlaying configured plans on the
// built-in table
func CreateQuota(cfg config.RateLimit, controller *ratelimit.Controller) *ratelimit.Quota {
	limits := ratelimit.DefaultCostLimits()
	for category, tiers := range cfg.Cost {
		cat := ratelimit.Category(category)
		if limits[cat] == nil {
			limits[cat] = make(map[ratelimit.Tier]ratelimit.TierLimits)
		}
		for tier, l := range tiers {
			limits[cat][ratelimit.Tier(tier)] = ratelimit.TierLimits{
				BurstPerMinute: l.BurstPerMinute,
				Daily:          l.Daily,
			}
		}
	}
	return ratelimit.NewQuota(controller, limits)
}
