package chatapps

import (
	"sync"
	"time"

	"github.com/queryon/queryon/store"
)

// EventType labels one step of a webhook's life for the ingress counters.
type EventType string

const (
	EventWebhookReceived   EventType = "webhook_received"
	EventWebhookValidated  EventType = "webhook_validated"
	EventWebhookParseError EventType = "webhook_parse_error"
	EventMessageProcessed  EventType = "message_processed"
	EventResponseSent      EventType = "response_sent"
	EventResponseError     EventType = "response_error"
)

const recentErrorLimit = 10

// ErrorRecord is one retained channel failure.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Event     EventType `json:"event"`
	Error     string    `json:"error"`
}

type channelMetrics struct {
	received       int64
	validated      int64
	parseErrors    int64
	processed      int64
	responsesSent  int64
	responseErrors int64

	totalProcess time.Duration
	lastReceived time.Time
	lastError    time.Time
	recentErrors []ErrorRecord
}

// MetricsRegistry tracks webhook health per platform.
type MetricsRegistry struct {
	mu       sync.RWMutex
	channels map[store.Platform]*channelMetrics
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{channels: make(map[store.Platform]*channelMetrics)}
}

// Record counts one event. took is only meaningful for
// EventMessageProcessed, err only for the error events.
func (r *MetricsRegistry) Record(platform store.Platform, event EventType, took time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.channels[platform]
	if !ok {
		m = &channelMetrics{}
		r.channels[platform] = m
	}

	now := time.Now()
	switch event {
	case EventWebhookReceived:
		m.received++
		m.lastReceived = now
	case EventWebhookValidated:
		m.validated++
	case EventWebhookParseError:
		m.parseErrors++
		m.fail(now, event, err)
	case EventMessageProcessed:
		m.processed++
		if took > 0 {
			m.totalProcess += took
		}
	case EventResponseSent:
		m.responsesSent++
	case EventResponseError:
		m.responseErrors++
		m.fail(now, event, err)
	}
}

func (m *channelMetrics) fail(now time.Time, event EventType, err error) {
	m.lastError = now
	if err == nil {
		return
	}
	m.recentErrors = append(m.recentErrors, ErrorRecord{Timestamp: now, Event: event, Error: err.Error()})
	if len(m.recentErrors) > recentErrorLimit {
		m.recentErrors = m.recentErrors[1:]
	}
}

// Snapshot is a point-in-time copy of one channel's counters.
type Snapshot struct {
	Received       int64         `json:"received"`
	Validated      int64         `json:"validated"`
	ParseErrors    int64         `json:"parse_errors"`
	Processed      int64         `json:"processed"`
	ResponsesSent  int64         `json:"responses_sent"`
	ResponseErrors int64         `json:"response_errors"`
	AvgProcessMs   int64         `json:"avg_process_ms"`
	LastReceived   time.Time     `json:"last_received"`
	LastError      time.Time     `json:"last_error"`
	RecentErrors   []ErrorRecord `json:"recent_errors,omitempty"`
}

// SuccessRate is the share of received webhooks that passed validation.
func (s *Snapshot) SuccessRate() float64 {
	if s.Received == 0 {
		return 100.0
	}
	return float64(s.Validated) / float64(s.Received) * 100.0
}

// IsHealthy reports whether the channel delivered within the last 5 minutes.
func (s *Snapshot) IsHealthy() bool {
	if s.LastReceived.IsZero() {
		return false
	}
	return time.Since(s.LastReceived) < 5*time.Minute
}

func (r *MetricsRegistry) Get(platform store.Platform) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.channels[platform]
	if !ok {
		return nil
	}
	return m.snapshot()
}

// All returns snapshots for every platform that has seen traffic.
func (r *MetricsRegistry) All() map[store.Platform]*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[store.Platform]*Snapshot, len(r.channels))
	for platform, m := range r.channels {
		out[platform] = m.snapshot()
	}
	return out
}

func (m *channelMetrics) snapshot() *Snapshot {
	s := &Snapshot{
		Received:       m.received,
		Validated:      m.validated,
		ParseErrors:    m.parseErrors,
		Processed:      m.processed,
		ResponsesSent:  m.responsesSent,
		ResponseErrors: m.responseErrors,
		LastReceived:   m.lastReceived,
		LastError:      m.lastError,
		RecentErrors:   append([]ErrorRecord{}, m.recentErrors...),
	}
	if m.processed > 0 {
		s.AvgProcessMs = (m.totalProcess / time.Duration(m.processed)).Milliseconds()
	}
	return s
}
