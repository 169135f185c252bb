package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics decouples the shard pool from a specific metrics backend.
type Metrics interface {
	RecordEvent(shardID uint32, eventType string)
	RecordRouteSuccess(shardID uint32, elapsed time.Duration)
	RecordRouteFailure(shardID uint32)
	RecordError(shardID uint32, kind string)
	RecordHeartbeat(shardID uint32)
	SetGuilds(shardID uint32, count uint64)
	SetShardsReady(poolID uint64, count int)
	SetNATSConnected(connected bool)
}

// PrometheusMetrics is the concrete Metrics implementation registered
// against a dedicated prometheus.Registry and served at /metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	eventsReceived   *prometheus.CounterVec
	eventsRouted     *prometheus.CounterVec
	routeFailures    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	heartbeats       *prometheus.CounterVec
	routeDuration    *prometheus.HistogramVec
	guildsGauge      *prometheus.GaugeVec
	shardsReadyGauge prometheus.Gauge
	natsConnected    prometheus.Gauge
}

// NewPrometheusMetrics builds a PrometheusMetrics registered against a
// fresh registry, isolated from the default global one.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: reg,
		eventsReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_received_total",
			Help: "Total gateway dispatches received, by shard and event type.",
		}, []string{"shard_id", "event_type"}),
		eventsRouted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_routed_total",
			Help: "Total events successfully published to the broker, by shard.",
		}, []string{"shard_id"}),
		routeFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_route_failures_total",
			Help: "Total publish failures, by shard.",
		}, []string{"shard_id"}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total errors, by shard and error kind label.",
		}, []string{"shard_id", "kind"}),
		heartbeats: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_heartbeats_total",
			Help: "Total heartbeat acknowledgements received, by shard.",
		}, []string{"shard_id"}),
		routeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_event_route_duration_seconds",
			Help:    "Time spent publishing an event to the broker.",
			Buckets: prometheus.DefBuckets,
		}, []string{"shard_id"}),
		guildsGauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_guilds_total",
			Help: "Current guild count, by shard.",
		}, []string{"shard_id"}),
		shardsReadyGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gateway_shards_ready",
			Help: "Number of shards in this pool currently ready.",
		}),
		natsConnected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gateway_nats_connected",
			Help: "1 if the broker connection is up, 0 otherwise.",
		}),
	}

	return m
}

func (m *PrometheusMetrics) RecordEvent(shardID uint32, eventType string) {
	m.eventsReceived.WithLabelValues(shardIDLabel(shardID), eventType).Inc()
}

func (m *PrometheusMetrics) RecordRouteSuccess(shardID uint32, elapsed time.Duration) {
	label := shardIDLabel(shardID)
	m.eventsRouted.WithLabelValues(label).Inc()
	m.routeDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) RecordRouteFailure(shardID uint32) {
	m.routeFailures.WithLabelValues(shardIDLabel(shardID)).Inc()
}

func (m *PrometheusMetrics) RecordError(shardID uint32, kind string) {
	m.errorsTotal.WithLabelValues(shardIDLabel(shardID), kind).Inc()
}

func (m *PrometheusMetrics) RecordHeartbeat(shardID uint32) {
	m.heartbeats.WithLabelValues(shardIDLabel(shardID)).Inc()
}

func (m *PrometheusMetrics) SetGuilds(shardID uint32, count uint64) {
	m.guildsGauge.WithLabelValues(shardIDLabel(shardID)).Set(float64(count))
}

func (m *PrometheusMetrics) SetShardsReady(poolID uint64, count int) {
	m.shardsReadyGauge.Set(float64(count))
}

func (m *PrometheusMetrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)

		return
	}

	m.natsConnected.Set(0)
}

// Handler exposes the registry in the Prometheus text exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func shardIDLabel(shardID uint32) string {
	return strconv.FormatUint(uint64(shardID), 10)
}
