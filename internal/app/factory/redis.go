package factory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"travelsec/internal/config"
	"travelsec/pkg/errors"
)

func applyRedisDefaults(cfg *config.Redis) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.MaxActive == 0 {
		cfg.MaxActive = 100
	}
	if cfg.MaxIdle == 0 {
		cfg.MaxIdle = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5
	}
}

func redisTLSConfig(cfg *config.RedisTLS) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "failed to load Redis client certificate").WithCause(err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// CreateRedisClient builds a single, cluster or sentinel client from
// configuration. URL, when set, takes precedence for single-node setups.
// The client is not contacted; see PingRedis.
func CreateRedisClient(cfg *config.Redis, logger *slog.Logger) (redis.UniversalClient, error) {
	if cfg == nil {
		return nil, errors.NewError(errors.ErrorTypeConfiguration, "Redis configuration is nil")
	}
	applyRedisDefaults(cfg)

	tlsConfig, err := redisTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	dial := time.Duration(cfg.ConnectTimeout) * time.Second
	read := time.Duration(cfg.ReadTimeout) * time.Second
	write := time.Duration(cfg.WriteTimeout) * time.Second
	idle := time.Duration(cfg.IdleTimeout) * time.Second

	switch {
	case cfg.Cluster:
		if len(cfg.ClusterNodes) == 0 {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "No cluster nodes specified")
		}
		logger.Info("Using Redis cluster", "nodes", cfg.ClusterNodes, "poolSize", cfg.MaxActive)
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           cfg.ClusterNodes,
			Password:        cfg.Password,
			PoolSize:        cfg.MaxActive,
			MinIdleConns:    cfg.MaxIdle,
			DialTimeout:     dial,
			ReadTimeout:     read,
			WriteTimeout:    write,
			ConnMaxIdleTime: idle,
			TLSConfig:       tlsConfig,
		}), nil

	case cfg.Sentinel:
		if len(cfg.SentinelNodes) == 0 || cfg.MasterName == "" {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "Sentinel nodes and master name are required")
		}
		logger.Info("Using Redis sentinel", "master", cfg.MasterName, "sentinels", cfg.SentinelNodes)
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:      cfg.MasterName,
			SentinelAddrs:   cfg.SentinelNodes,
			Password:        cfg.Password,
			DB:              cfg.DB,
			PoolSize:        cfg.MaxActive,
			MinIdleConns:    cfg.MaxIdle,
			DialTimeout:     dial,
			ReadTimeout:     read,
			WriteTimeout:    write,
			ConnMaxIdleTime: idle,
			TLSConfig:       tlsConfig,
		}), nil
	}

	var opts *redis.Options
	if cfg.URL != "" {
		opts, err = redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration, "invalid Redis URL").WithCause(err)
		}
		if tlsConfig != nil {
			opts.TLSConfig = tlsConfig
		}
	} else {
		opts = &redis.Options{
			Addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:  cfg.Password,
			DB:        cfg.DB,
			TLSConfig: tlsConfig,
		}
	}
	opts.PoolSize = cfg.MaxActive
	opts.MinIdleConns = cfg.MaxIdle
	opts.DialTimeout = dial
	opts.ReadTimeout = read
	opts.WriteTimeout = write
	if idle > 0 {
		opts.ConnMaxIdleTime = idle
	}

	logger.Info("Using Redis", "addr", opts.Addr, "db", opts.DB, "poolSize", opts.PoolSize)
	return redis.NewClient(opts), nil
}

// PingRedis checks that the client answers within timeout
func PingRedis(ctx context.Context, client redis.UniversalClient, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return errors.NewError(errors.ErrorTypeUnavailable, "failed to connect to Redis").WithCause(err)
	}
	return nil
}
