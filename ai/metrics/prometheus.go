// Package metrics exports Prometheus metrics for the conversation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter registers and records the pipeline metrics.
type Exporter struct {
	registry *prometheus.Registry

	// Turn metrics
	turns                  *prometheus.CounterVec
	classificationDuration *prometheus.HistogramVec
	handlerDuration        *prometheus.HistogramVec
	activeConversations    prometheus.Gauge

	// LLM metrics
	llmCalls  *prometheus.CounterVec
	llmTokens *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Delivery metrics
	webhookDeliveries *prometheus.CounterVec
	channelMessages   *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for duration histograms (in seconds)
	DurationBuckets []float64
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		DurationBuckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates an exporter and registers all metrics.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "orchestrator",
			Name:      "turns_total",
			Help:      "Total conversation turns by final intent, classifier layer and fallback use",
		},
		[]string{"intent", "layer", "fallback"},
	)

	e.classificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryon",
			Subsystem: "orchestrator",
			Name:      "classification_duration_seconds",
			Help:      "Classification latency by the layer that produced the verdict",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"layer"},
	)

	e.handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryon",
			Subsystem: "orchestrator",
			Name:      "handler_duration_seconds",
			Help:      "Handler latency by intent",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"intent"},
	)

	e.activeConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "queryon",
			Subsystem: "orchestrator",
			Name:      "active_conversations",
			Help:      "Conversations with activity in the current window",
		},
	)

	e.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total LLM completions by purpose",
		},
		[]string{"purpose"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses",
		},
		[]string{"cache_type"},
	)

	e.webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total outbound webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	e.channelMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryon",
			Subsystem: "channel",
			Name:      "messages_total",
			Help:      "Total inbound messages by channel",
		},
		[]string{"channel"},
	)

	registry.MustRegister(
		e.turns,
		e.classificationDuration,
		e.handlerDuration,
		e.activeConversations,
		e.llmCalls,
		e.llmTokens,
		e.cacheHits,
		e.cacheMisses,
		e.webhookDeliveries,
		e.channelMessages,
	)

	return e
}

// RecordTurn records one completed conversation turn.
func (e *Exporter) RecordTurn(intent, layer string, fallback bool, classification, handler time.Duration) {
	fb := "false"
	if fallback {
		fb = "true"
	}
	e.turns.WithLabelValues(intent, layer, fb).Inc()
	e.classificationDuration.WithLabelValues(layer).Observe(classification.Seconds())
	e.handlerDuration.WithLabelValues(intent).Observe(handler.Seconds())
}

// RecordLLMCalls adds completed LLM calls for a purpose such as
// "classification", "handler" or "assist".
func (e *Exporter) RecordLLMCalls(purpose string, count int64) {
	if count <= 0 {
		return
	}
	e.llmCalls.WithLabelValues(purpose).Add(float64(count))
}

// RecordLLMTokens records token usage for one completion.
func (e *Exporter) RecordLLMTokens(model, tokenType string, count int) {
	if count <= 0 {
		return
	}
	e.llmTokens.WithLabelValues(model, tokenType).Add(float64(count))
}

// RecordCacheHit records a hit for a cache such as "classification".
func (e *Exporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a miss.
func (e *Exporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// AddCacheStats records hit and miss deltas read from a cache's own
// counters. Negative deltas are dropped.
func (e *Exporter) AddCacheStats(cacheType string, hits, misses int64) {
	if hits > 0 {
		e.cacheHits.WithLabelValues(cacheType).Add(float64(hits))
	}
	if misses > 0 {
		e.cacheMisses.WithLabelValues(cacheType).Add(float64(misses))
	}
}

// RecordWebhookDelivery records an outbound delivery attempt. outcome is
// "delivered", "failed" or "skipped".
func (e *Exporter) RecordWebhookDelivery(event, outcome string) {
	e.webhookDeliveries.WithLabelValues(event, outcome).Inc()
}

// RecordChannelMessage counts one inbound message from a channel.
func (e *Exporter) RecordChannelMessage(channel string) {
	e.channelMessages.WithLabelValues(channel).Inc()
}

// SetActiveConversations sets the active-conversation gauge.
func (e *Exporter) SetActiveConversations(count int) {
	e.activeConversations.Set(float64(count))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can register
// collectors of their own.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
