// Package metrics exposes Prometheus metrics for the liquidator.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"liquidationScope/internal/model"
)

const namespace = "liquidator"

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Tracker
	EventsApplied      *prometheus.CounterVec
	AccountReads       *prometheus.CounterVec
	MonitoredPositions prometheus.Gauge

	// Oracle
	PriceLookups *prometheus.CounterVec

	// Liquidity
	SourceSelections *prometheus.CounterVec

	// Executor
	GroupedBatches    prometheus.Counter
	BatchesSkipped    prometheus.Counter
	BatchesExecuted   prometheus.Counter
	SettlementResults *prometheus.CounterVec

	// Loop
	CycleDuration prometheus.Histogram
	CycleErrors   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "events_applied_total",
			Help:      "Position events applied by kind",
		}, []string{"kind"}),
		AccountReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "account_reads_total",
			Help:      "getUserAccountData reads by result",
		}, []string{"result"}),
		MonitoredPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "monitored_positions",
			Help:      "Number of monitored borrowers",
		}),
		PriceLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "price_lookups_total",
			Help:      "Price lookups by cache result",
		}, []string{"cache"}),
		SourceSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "source_selections_total",
			Help:      "Flash source selections by asset and source",
		}, []string{"asset", "source"}),
		GroupedBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "batches_grouped_total",
			Help:      "Batches produced by grouping",
		}),
		BatchesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "batches_skipped_total",
			Help:      "Batches skipped for non-positive expected profit",
		}),
		BatchesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "batches_executed_total",
			Help:      "Batches dispatched to settlement",
		}),
		SettlementResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "settlement_results_total",
			Help:      "Settlement outcomes per target",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one evaluation cycle",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycle_errors_total",
			Help:      "Evaluation cycles skipped on error",
		}),
	}
}

// RegisterEndpoints exports per-endpoint request counters read from stats.
func (m *Metrics) RegisterEndpoints(stats func() map[string]uint64) {
	m.registry.MustRegister(&endpointCollector{
		stats: stats,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "rpc", "requests_total"),
			"Requests issued per RPC endpoint",
			[]string{"endpoint"}, nil,
		),
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Metrics) EventApplied(kind model.EventKind) {
	m.EventsApplied.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) AccountRead(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AccountReads.WithLabelValues(result).Inc()
}

func (m *Metrics) Monitored(count int) {
	m.MonitoredPositions.Set(float64(count))
}

func (m *Metrics) PriceLookup(hit bool) {
	cache := "miss"
	if hit {
		cache = "hit"
	}
	m.PriceLookups.WithLabelValues(cache).Inc()
}

func (m *Metrics) SourceSelected(asset string, source model.FlashSourceID) {
	m.SourceSelections.WithLabelValues(asset, string(source)).Inc()
}

func (m *Metrics) BatchesGrouped(count int) {
	m.GroupedBatches.Add(float64(count))
}

func (m *Metrics) BatchSkipped() {
	m.BatchesSkipped.Inc()
}

func (m *Metrics) BatchExecuted() {
	m.BatchesExecuted.Inc()
}

func (m *Metrics) SettlementResult(status model.SettlementStatus) {
	m.SettlementResults.WithLabelValues(string(status)).Inc()
}

// ObserveCycle records one loop iteration.
func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	m.CycleDuration.Observe(d.Seconds())
	if err != nil {
		m.CycleErrors.Inc()
	}
}

type endpointCollector struct {
	stats func() map[string]uint64
	desc  *prometheus.Desc
}

func (c *endpointCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *endpointCollector) Collect(ch chan<- prometheus.Metric) {
	for endpoint, count := range c.stats() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(count), endpointLabel(endpoint))
	}
}

// endpointLabel keeps scheme and host so API keys in paths or queries are not exported.
func endpointLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Scheme + "://" + u.Host
}
