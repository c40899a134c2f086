package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the connectivity layer.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Contract RPC metrics
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	// Transaction dispatch metrics
	txDispatchTotal    *prometheus.CounterVec
	txDispatchDuration *prometheus.HistogramVec

	// Wallet pairing metrics
	pairingEventsTotal *prometheus.CounterVec

	// Mirror node metrics
	mirrorRequestsTotal   *prometheus.CounterVec
	mirrorRequestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheReplacementsTotal *prometheus.CounterVec

	// Diagnostics metrics
	diagRecomputesTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajolink_rpc_calls_total",
				Help: "Total number of contract RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ajolink_rpc_call_duration_seconds",
				Help:    "Duration of contract RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		txDispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajolink_tx_dispatch_total",
				Help: "Total number of transaction dispatches to the signing agent by outcome",
			},
			[]string{"outcome"},
		),
		txDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ajolink_tx_dispatch_duration_seconds",
				Help:    "Time from transaction dispatch to signing-agent response in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		pairingEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajolink_pairing_events_total",
				Help: "Total number of wallet pairing lifecycle events by type",
			},
			[]string{"event"},
		),
		mirrorRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajolink_mirror_requests_total",
				Help: "Total number of mirror node HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		mirrorRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ajolink_mirror_request_duration_seconds",
				Help:    "Duration of mirror node HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint"},
		),
		cacheReplacementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajolink_cache_replacements_total",
				Help: "Total number of full cache replacements by cache name",
			},
			[]string{"cache"},
		),
		diagRecomputesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ajolink_diag_recomputes_total",
				Help: "Total number of diagnostics recomputations triggered by input changes",
			},
		),
	}
}

// RecordRPCCall records a contract RPC call with its duration in seconds.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordTxDispatch records a transaction dispatch outcome
// (confirmed, rejected, timeout, error) with its duration in seconds.
func (m *Metrics) RecordTxDispatch(outcome string, duration float64) {
	m.txDispatchTotal.WithLabelValues(outcome).Inc()
	m.txDispatchDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordPairingEvent records a wallet pairing lifecycle event
// (paired, disconnected, status_changed, restore_failed).
func (m *Metrics) RecordPairingEvent(event string) {
	m.pairingEventsTotal.WithLabelValues(event).Inc()
}

// RecordMirrorRequest records a mirror node HTTP request with its duration in seconds.
func (m *Metrics) RecordMirrorRequest(endpoint, status string, duration float64) {
	m.mirrorRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.mirrorRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordCacheReplace records a full replacement of a client cache.
func (m *Metrics) RecordCacheReplace(cache string) {
	m.cacheReplacementsTotal.WithLabelValues(cache).Inc()
}

// RecordDiagRecompute records a diagnostics recomputation.
func (m *Metrics) RecordDiagRecompute() {
	m.diagRecomputesTotal.Inc()
}
