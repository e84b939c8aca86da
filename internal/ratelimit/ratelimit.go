// Package ratelimit implements the shared Rate Limiter (spec 4.9): a
// distributed token bucket keyed by client identifier and backed by the
// cache store, plus a local in-process limiter for REST middleware.
//
// Grounded on original_source/collectors/circuit_breaker.py's pattern of
// storing small numeric state as plain fields and re-deriving a decision
// from elapsed wall-clock time on every call, adapted here to the
// {tokens, last_refill} token-bucket formula spec 4.9 specifies literally,
// backed by the already-implemented model.Cache hash port.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Decision is the outcome of an Allow call. Limit/Remaining/Reset feed the
// X-RateLimit-{Limit,Remaining,Reset} response headers (spec 6).
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	Reset      time.Duration // time until the bucket is back at capacity
}

// Limiter is a distributed token bucket: capacity tokens refilled at
// rate/period, keyed per client, persisted in the cache store.
type Limiter struct {
	cache      model.Cache
	capacity   float64
	refillRate float64 // tokens per second
	log        *slog.Logger
}

// New builds a Limiter that refills `rate` tokens every `period`, holding
// at most `capacity` tokens per client.
func New(cache model.Cache, capacity float64, rate float64, period time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{
		cache:      cache,
		capacity:   capacity,
		refillRate: rate / period.Seconds(),
		log:        log,
	}
}

func bucketKey(clientID string) string { return "ratelimit:" + clientID }

// Allow consumes cost tokens from clientID's bucket. If the cache store is
// unreachable, it fails open (allow, logged) — spec 4.9's explicit
// availability/integrity trade-off for rate limiting only.
func (l *Limiter) Allow(ctx context.Context, clientID string, cost float64) Decision {
	now := time.Now()

	fields, err := l.cache.GetHash(ctx, bucketKey(clientID))
	if err != nil {
		l.log.Warn("ratelimit cache unreachable, failing open", "client", clientID, "error", err)
		return Decision{Allowed: true, Limit: int(l.capacity), Remaining: int(l.capacity)}
	}

	tokens := l.capacity
	lastRefill := now
	if raw, ok := fields["tokens"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			tokens = v
		}
	}
	if raw, ok := fields["last_refill"]; ok {
		if unixNano, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastRefill = time.Unix(0, unixNano)
		}
	}

	elapsed := now.Sub(lastRefill).Seconds()
	if elapsed > 0 {
		tokens = math.Min(l.capacity, tokens+elapsed*l.refillRate)
	}

	resetIn := time.Duration(math.Ceil((l.capacity-tokens)/l.refillRate)) * time.Second

	if tokens < cost {
		l.persist(ctx, clientID, tokens, now)
		deficit := cost - tokens
		retryAfter := time.Duration(math.Ceil(deficit/l.refillRate)) * time.Second
		return Decision{Allowed: false, RetryAfter: retryAfter, Limit: int(l.capacity), Remaining: int(tokens), Reset: resetIn}
	}

	tokens -= cost
	l.persist(ctx, clientID, tokens, now)
	return Decision{Allowed: true, Limit: int(l.capacity), Remaining: int(tokens), Reset: resetIn}
}

func (l *Limiter) persist(ctx context.Context, clientID string, tokens float64, at time.Time) {
	fields := map[string]string{
		"tokens":      strconv.FormatFloat(tokens, 'f', -1, 64),
		"last_refill": fmt.Sprintf("%d", at.UnixNano()),
	}
	// No natural TTL: an idle client's bucket should still read back its
	// true refill state whenever it returns, however long that takes.
	if err := l.cache.SetHash(ctx, bucketKey(clientID), fields, 0); err != nil {
		l.log.Warn("ratelimit persist failed", "client", clientID, "error", err)
	}
}
