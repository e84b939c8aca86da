// Package metrics exposes the platform's Prometheus counters/gauges and a
// /metrics HTTP server. Grounded on the teacher's internal/metrics
// (NewMetrics' registration pattern and the promhttp.Handler()-backed
// Server), trimmed to the counters this platform's bus messages can
// actually drive and renamed off the teacher's mdengine_/indengine_
// prefixes onto this platform's domain.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Metrics holds every Prometheus metric the pipeline updates from bus
// traffic.
type Metrics struct {
	TicksTotal      *prometheus.CounterVec // labels: venue
	BarsTotal       *prometheus.CounterVec // labels: venue, tf
	ChartUpdates    prometheus.Counter
	AlertsFired     *prometheus.CounterVec // labels: user
	CollectorErrors *prometheus.CounterVec // labels: component
	Reconnects      *prometheus.CounterVec // labels: component
	CircuitState    *prometheus.GaugeVec   // labels: component; 0=closed,1=open,2=half_open
	BusSubscribers  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_ticks_total",
			Help: "Total normalized ticks accepted onto the bus, by venue.",
		}, []string{"venue"}),
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_bars_completed_total",
			Help: "Total completed candles published, by venue and timeframe.",
		}, []string{"venue", "tf"}),
		ChartUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platform_chart_updates_total",
			Help: "Total chart_updates messages published by the indicator engine.",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_alerts_fired_total",
			Help: "Total alerts fired, by user.",
		}, []string{"user"}),
		CollectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_collector_errors_total",
			Help: "Total collector run-loop errors, by component.",
		}, []string{"component"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_collector_reconnects_total",
			Help: "Total collector reconnect cycles, by component.",
		}, []string{"component"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "platform_circuit_breaker_state",
			Help: "Circuit breaker state by component (0=closed, 1=open, 2=half_open).",
		}, []string{"component"}),
		BusSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "platform_bus_subscribers",
			Help: "Current number of in-process bus subscribers.",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal, m.BarsTotal, m.ChartUpdates, m.AlertsFired,
		m.CollectorErrors, m.Reconnects, m.CircuitState, m.BusSubscribers,
	)
	return m
}

// Watch drains every bus message and updates the matching metric. It does
// not alter message delivery to other subscribers — it runs on its own
// subscription.
func (m *Metrics) Watch(ctx context.Context, b *bus.Bus) {
	ch := b.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.observe(msg)
		}
	}
}

func (m *Metrics) observe(msg model.BusMessage) {
	switch v := msg.(type) {
	case model.TickMsg:
		m.TicksTotal.WithLabelValues(v.Tick.Venue).Inc()
	case model.BarCompletedMsg:
		m.BarsTotal.WithLabelValues(v.Candle.Venue, itoa(v.Candle.TF)).Inc()
	case model.ChartUpdateMsg:
		m.ChartUpdates.Inc()
	case model.AlertMsg:
		m.AlertsFired.WithLabelValues(v.Alert.Rule.User).Inc()
	case model.HealthReport:
		m.CollectorErrors.WithLabelValues(v.Component).Add(0) // ensures the series exists even with zero errors
		m.Reconnects.WithLabelValues(v.Component).Add(0)
		m.CircuitState.WithLabelValues(v.Component).Set(cbStateValue(v.CBState))
	}
}

func cbStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half_open", "half-open":
		return 2
	default:
		return 0
	}
}

func itoa(n int) string { return model.Itoa(n) }

// Server exposes /metrics via promhttp.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(addr string, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}, log: log}
}

func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server failed", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
