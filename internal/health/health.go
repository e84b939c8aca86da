// Package health maintains the aggregate system health view behind
// GET /health (spec 6, 7): "a component's health status reports
// running/connected/degraded independently; /health aggregates
// (unhealthy iff any critical dependency is missing a connection)."
package health

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

const cacheKey = "system:health"
const cacheTTLSeconds = 60

// Status is the overall /health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Report is the GET /health response body.
type Report struct {
	Status     Status                        `json:"status"`
	Components map[string]model.HealthReport `json:"components"`
}

// Recorder consumes HealthReport messages off the bus and writes each
// component's latest report through to the cache hash, so the REST
// process (a separate binary from the pipeline) can read it back.
type Recorder struct {
	cache model.Cache
	log   *slog.Logger
}

func NewRecorder(cache model.Cache, log *slog.Logger) *Recorder {
	return &Recorder{cache: cache, log: log}
}

// Run drains the given channel of HealthReport messages until it closes.
func (r *Recorder) Run(ctx context.Context, reports <-chan model.BusMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-reports:
			if !ok {
				return
			}
			hr, ok := msg.(model.HealthReport)
			if !ok {
				continue
			}
			r.record(ctx, hr)
		}
	}
}

func (r *Recorder) record(ctx context.Context, hr model.HealthReport) {
	payload, err := json.Marshal(hr)
	if err != nil {
		r.log.Error("health: marshal report failed", "component", hr.Component, "error", err)
		return
	}
	if err := r.cache.SetHash(ctx, cacheKey, map[string]string{hr.Component: string(payload)}, cacheTTLSeconds); err != nil {
		r.log.Warn("health: cache write failed", "component", hr.Component, "error", err)
	}
}

// Aggregator reads the cache hash built by Recorder to answer GET /health
// from a process that never ran the collectors itself (e.g. cmd/gateway).
type Aggregator struct {
	cache model.Cache
}

func NewAggregator(cache model.Cache) *Aggregator {
	return &Aggregator{cache: cache}
}

// Aggregate implements spec 7's rule: unhealthy iff any component reports
// not running, degraded iff any component reports running but not
// connected, else healthy.
func (a *Aggregator) Aggregate(ctx context.Context) (Report, error) {
	fields, err := a.cache.GetHash(ctx, cacheKey)
	if err != nil {
		return Report{}, err
	}

	components := make(map[string]model.HealthReport, len(fields))
	status := StatusHealthy
	for name, raw := range fields {
		var hr model.HealthReport
		if err := json.Unmarshal([]byte(raw), &hr); err != nil {
			continue
		}
		components[name] = hr
		switch {
		case !hr.Running:
			status = StatusUnhealthy
		case !hr.Connected && status != StatusUnhealthy:
			status = StatusDegraded
		}
	}
	return Report{Status: status, Components: components}, nil
}
