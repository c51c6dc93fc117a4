// Package tls builds server TLS settings from configuration values.
package tls

import (
	"crypto/tls"
	"fmt"
)

// ParseTLSVersion maps "1.0" through "1.3" to the crypto/tls constant.
// Anything else yields TLS 1.2.
func ParseTLSVersion(v string) uint16 {
	switch v {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// ServerConfig loads the key pair and applies the minimum version
func ServerConfig(certFile, keyFile, minVersion string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   ParseTLSVersion(minVersion),
	}, nil
}
