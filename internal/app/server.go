package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"travelsec/internal/config"
	"travelsec/internal/ratelimit"
	"travelsec/internal/secretstore"
	"travelsec/internal/storage"
	"travelsec/internal/telemetry"
	"travelsec/pkg/errors"
	tlsutil "travelsec/pkg/tls"
)

const ratelimitPingTimeout = 2 * time.Second

// Server is the security sidecar
type Server struct {
	config     *config.Config
	handler    http.Handler
	logger     *slog.Logger
	secrets    *secretstore.Accessor
	controller *ratelimit.Controller
	nonces     storage.NonceStore
	telemetry  *telemetry.Telemetry
	redis      redis.UniversalClient

	server   *http.Server
	listener net.Listener
}

// NewServer creates a new server from configuration
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	return NewBuilder(cfg, logger).Build()
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound address once Start has returned
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ApplyConfig swaps the secret snapshot. Other settings need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) error {
	s.secrets.Update(cfg.Security)
	s.logger.Info("Security settings reloaded", "secrets", s.secrets.Diagnostics())
	return nil
}

// Start binds the listener and serves in the background. It returns once
// the port is bound or binding failed.
func (s *Server) Start(ctx context.Context) error {
	srv := s.config.Server
	addr := fmt.Sprintf("%s:%d", srv.Host, srv.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(srv.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(srv.WriteTimeout) * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	if srv.TLS != nil && srv.TLS.Enabled {
		tlsConfig, err := tlsutil.ServerConfig(srv.TLS.CertFile, srv.TLS.KeyFile, srv.TLS.MinVersion)
		if err != nil {
			listener.Close()
			return errors.NewError(errors.ErrorTypeConfiguration, "invalid TLS configuration").WithCause(err)
		}
		s.server.TLSConfig = tlsConfig
		listener = tls.NewListener(listener, tlsConfig)
		s.logger.Info("Starting TLS server", "addr", listener.Addr().String(), "cert", srv.TLS.CertFile)
	} else {
		s.logger.Info("Starting server", "addr", listener.Addr().String())
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()
	return nil
}

// Stop drains connections and releases stores and exporters
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
		}
	}
	if err := s.controller.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing rate limiter: %w", err))
	}
	if err := s.nonces.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing nonce store: %w", err))
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}
