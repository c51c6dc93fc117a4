package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"travelsec/internal/storage"
	"travelsec/pkg/errors"
	"travelsec/pkg/metrics"
)

// DefaultBackendTimeout bounds a single call to the distributed backend.
const DefaultBackendTimeout = 250 * time.Millisecond

// Controller admits or denies requests. It prefers the distributed
// limiter and degrades to the local one, per call, on any backend error
// or timeout. Check never fails.
type Controller struct {
	primary Limiter
	local   *LocalLimiter
	timeout time.Duration
	clock   storage.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Controller
type Option func(*Controller)

// WithBackendTimeout overrides DefaultBackendTimeout
func WithBackendTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock sets the clock used for retry hints
func WithClock(clock storage.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewController creates a controller. primary may be nil, in which case
// every check runs on local.
func NewController(primary Limiter, local *LocalLimiter, opts ...Option) *Controller {
	if local == nil {
		local = NewLocalLimiter(nil)
	}
	c := &Controller{
		primary: primary,
		local:   local,
		timeout: DefaultBackendTimeout,
		clock:   storage.SystemClock{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("travelsec/ratelimit"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "ratelimit")
	return c
}

// Backend reports the name of the preferred backend.
func (c *Controller) Backend() string {
	if c.primary == nil {
		return c.local.Name()
	}
	return c.primary.Name()
}

// Now returns the controller's current time.
func (c *Controller) Now() time.Time { return c.clock.Now() }

// Check runs one admission check.
func (c *Controller) Check(ctx context.Context, opts Options) Result {
	opts = opts.normalize()

	ctx, span := c.tracer.Start(ctx, "ratelimit.Check", trace.WithAttributes(
		attribute.String("ratelimit.prefix", opts.Prefix),
		attribute.Int("ratelimit.limit", opts.Limit),
	))
	defer span.End()

	if c.primary != nil {
		res, err := c.checkPrimary(ctx, opts)
		if err == nil {
			c.metrics.ObserveRateLimit(opts.Prefix, c.primary.Name(), res.Success)
			span.SetAttributes(attribute.String("ratelimit.backend", c.primary.Name()), attribute.Bool("ratelimit.allowed", res.Success))
			return res
		}

		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		c.logger.Warn("rate limit backend unavailable, falling back to in-memory",
			"backend", c.primary.Name(),
			"prefix", opts.Prefix,
			"reason", reason,
			"error", err,
		)
		c.metrics.ObserveFallback(opts.Prefix, reason)
		span.RecordError(err)
	}

	res, err := c.local.Check(ctx, opts)
	if err != nil {
		// The in-memory store does not fail; deny rather than admit blind.
		c.logger.Error("local rate limit check failed", "prefix", opts.Prefix, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Success: false, Limit: opts.Limit, Remaining: 0, Reset: c.clock.Now().Add(opts.Window)}
	}
	c.metrics.ObserveRateLimit(opts.Prefix, c.local.Name(), res.Success)
	span.SetAttributes(attribute.String("ratelimit.backend", c.local.Name()), attribute.Bool("ratelimit.allowed", res.Success))
	return res
}

func (c *Controller) checkPrimary(ctx context.Context, opts Options) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.primary.Check(ctx, opts)
	c.metrics.ObserveBackend(c.primary.Name(), time.Since(start))
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

// CheckAll runs every check in order, without short-circuiting, and
// reports whether all of them admitted the request.
func (c *Controller) CheckAll(ctx context.Context, opts ...Options) ([]Result, bool) {
	results := make([]Result, len(opts))
	allowed := true
	for i, o := range opts {
		results[i] = c.Check(ctx, o)
		allowed = allowed && results[i].Success
	}
	return results, allowed
}

// Reset clears the counters for opts on every backend.
func (c *Controller) Reset(ctx context.Context, opts Options) error {
	opts = opts.normalize()
	var errs []error
	if c.primary != nil {
		rctx, cancel := context.WithTimeout(ctx, c.timeout)
		errs = append(errs, c.primary.Reset(rctx, opts))
		cancel()
	}
	errs = append(errs, c.local.Reset(ctx, opts))
	return errors.Join(errs...)
}

// Close releases the local store.
func (c *Controller) Close() error {
	return c.local.Close()
}
