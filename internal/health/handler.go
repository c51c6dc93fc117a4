package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"travelsec/internal/middleware"
	"travelsec/pkg/metrics"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check represents a health check function
type Check func(ctx context.Context) error

type registered struct {
	check    Check
	optional bool
}

// Checker manages health checks
type Checker struct {
	checks  map[string]registered
	metrics *metrics.Metrics
	mu      sync.RWMutex
}

// NewChecker creates a new health checker. m may be nil.
func NewChecker(m *metrics.Metrics) *Checker {
	return &Checker{
		checks:  make(map[string]registered),
		metrics: m,
	}
}

// RegisterCheck registers a check whose failure makes the service unhealthy
func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, check, false)
}

// RegisterOptional registers a check whose failure only degrades the service
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{check: check, optional: optional}
}

// CheckHealth runs all health checks concurrently
func (c *Checker) CheckHealth(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex

	for name, reg := range checks {
		wg.Add(1)
		go func(name string, reg registered) {
			defer wg.Done()

			start := time.Now()
			err := reg.check(ctx)

			result := CheckResult{
				Status:   StatusHealthy,
				Duration: time.Since(start),
			}
			if err != nil {
				result.Status = StatusUnhealthy
				if reg.optional {
					result.Status = StatusDegraded
				}
				result.Error = err.Error()
			}
			c.observe(name, err == nil)

			resultsMu.Lock()
			results[name] = result
			resultsMu.Unlock()
		}(name, reg)
	}

	wg.Wait()
	return results
}

func (c *Checker) observe(name string, ok bool) {
	if c.metrics == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	c.metrics.HealthCheckStatus.WithLabelValues(name).Set(v)
}

// Overall folds check results into one status
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Backend   string                 `json:"backend,omitempty"`
}

// Handler creates HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
	version string
	backend func() string
}

// NewHandler creates a new health handler. backend reports the active
// limiter backend and may be nil.
func NewHandler(checker *Checker, version string, backend func() string) *Handler {
	return &Handler{
		checker: checker,
		version: version,
		backend: backend,
	}
}

// Health handles the /healthz endpoint. Degraded still answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := h.checker.CheckHealth(ctx)
	status := Overall(results)

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
		Version:   h.version,
	}
	if h.backend != nil {
		response.Backend = h.backend()
	}

	statusCode := http.StatusOK
	if status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, statusCode, response)
}

// Live handles the /livez endpoint
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}
