// Package redis is the Redis-backed hot cache and cross-process bus: sorted-
// set bar history, hash caches with TTL for indicators/features, and
// pub/sub for the named channels the bus contract defines. Grounded on the
// teacher's internal/store/redis (pipelined writer) and internal/gateway
// (pub/sub subscriber), adapted to the spec's literal cache-key scheme.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store wraps a go-redis client and implements model.Cache plus the
// CandleStore/IndicatorStore/FeatureStore ports used by the pipeline.
type Store struct {
	client *goredis.Client
}

// New connects to Redis and verifies the connection with a PING.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// Client exposes the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the Redis connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
