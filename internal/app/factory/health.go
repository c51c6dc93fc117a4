package factory

import (
	"travelsec/internal/health"
	"travelsec/internal/security/tokencipher"
	"travelsec/pkg/metrics"
)

// CreateHealthChecker registers the cipher self test as required and the
// Redis ping as optional. pinger may be nil.
func CreateHealthChecker(pinger health.Pinger, cipher *tokencipher.Cipher, m *metrics.Metrics) *health.Checker {
	checker := health.NewChecker(m)
	checker.RegisterCheck("credential_cipher", health.SelfTest("credential cipher", cipher.HealthCheck))
	if pinger != nil {
		checker.RegisterOptional("redis", health.RedisCheck(pinger))
	}
	return checker
}
