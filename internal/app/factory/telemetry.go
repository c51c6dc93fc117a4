package factory

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"travelsec/internal/config"
	"travelsec/internal/telemetry"
)

// CreateTelemetry creates the OTel providers and instruments. OTel
// metrics are exported through registerer.
func CreateTelemetry(cfg config.Telemetry, registerer prometheus.Registerer, logger *slog.Logger) (*telemetry.Telemetry, *telemetry.Metrics, error) {
	tel, err := telemetry.New(cfg, telemetry.WithRegisterer(registerer))
	if err != nil {
		return nil, nil, fmt.Errorf("creating telemetry: %w", err)
	}

	var m *telemetry.Metrics
	if cfg.Enabled && cfg.Metrics.Enabled {
		m, err = tel.NewMetrics()
		if err != nil {
			return nil, nil, fmt.Errorf("creating telemetry metrics: %w", err)
		}
	}

	if cfg.Enabled {
		logger.Info("Telemetry enabled", "service", cfg.Service, "version", cfg.Version, "tracing", cfg.Tracing.Enabled)
	}
	return tel, m, nil
}
