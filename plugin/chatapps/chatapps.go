// Package chatapps routes webhook traffic between chat platforms and the
// assistant. Each platform implements ChatChannel; the router owns the
// registry and the per-channel ingress metrics. Queryon channels are text
// only, media updates are acknowledged and dropped.
package chatapps

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/queryon/queryon/store"
)

var (
	ErrNoChannel        = errors.New("no channel registered for platform")
	ErrInvalidSignature = errors.New("webhook signature rejected")
	ErrInvalidPayload   = errors.New("webhook payload could not be parsed")
)

// IncomingMessage is one user message normalised from a platform webhook.
type IncomingMessage struct {
	Platform store.Platform
	// ChatID is the platform-native conversation key: the Telegram chat id,
	// the WhatsApp E.164 number, or the web conversation UID.
	ChatID    string
	Text      string
	Name      string // contact display name, when the platform sends one
	Username  string
	Phone     string
	Timestamp time.Time
}

// OutgoingMessage is one assistant reply bound for a platform.
type OutgoingMessage struct {
	ChatID string
	Text   string
}

// ChatChannel adapts one chat platform. ParseMessage may return (nil, nil)
// for updates the assistant ignores, such as delivery receipts and media;
// callers still acknowledge those.
type ChatChannel interface {
	Name() store.Platform
	ValidateWebhook(ctx context.Context, headers map[string]string, body []byte) error
	ParseMessage(ctx context.Context, payload []byte) (*IncomingMessage, error)
	SendMessage(ctx context.Context, msg *OutgoingMessage) error
	Close() error
}

// ChannelRouter dispatches webhook bodies to the registered channel and
// replies back out. Safe for concurrent use.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[store.Platform]ChatChannel
	metrics  *MetricsRegistry
}

func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{
		registry: make(map[store.Platform]ChatChannel),
		metrics:  NewMetricsRegistry(),
	}
}

func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// Channel returns the channel for a platform, or nil.
func (r *ChannelRouter) Channel(platform store.Platform) ChatChannel {
	r.mu.RLock()
	ch := r.registry[platform]
	r.mu.RUnlock()
	return ch
}

// Metrics exposes the ingress counters for the admin surface.
func (r *ChannelRouter) Metrics() *MetricsRegistry {
	return r.metrics
}

// HandleWebhook validates and parses one webhook body. A nil message with a
// nil error is an ignorable update that still wants a 200.
func (r *ChannelRouter) HandleWebhook(ctx context.Context, platform store.Platform, headers map[string]string, body []byte) (*IncomingMessage, error) {
	channel := r.Channel(platform)
	if channel == nil {
		return nil, ErrNoChannel
	}
	r.metrics.Record(platform, EventWebhookReceived, 0, nil)

	if err := channel.ValidateWebhook(ctx, headers, body); err != nil {
		return nil, err
	}
	r.metrics.Record(platform, EventWebhookValidated, 0, nil)

	msg, err := channel.ParseMessage(ctx, body)
	if err != nil {
		r.metrics.Record(platform, EventWebhookParseError, 0, err)
		return nil, err
	}
	return msg, nil
}

// SendResponse delivers one assistant reply through the platform's channel.
func (r *ChannelRouter) SendResponse(ctx context.Context, platform store.Platform, msg *OutgoingMessage) error {
	channel := r.Channel(platform)
	if channel == nil {
		return ErrNoChannel
	}
	if err := channel.SendMessage(ctx, msg); err != nil {
		r.metrics.Record(platform, EventResponseError, 0, err)
		return err
	}
	r.metrics.Record(platform, EventResponseSent, 0, nil)
	return nil
}

// RecordProcessed marks one message as fully handled by the assistant.
func (r *ChannelRouter) RecordProcessed(platform store.Platform, took time.Duration) {
	r.metrics.Record(platform, EventMessageProcessed, took, nil)
}

var _ io.Closer = (*ChannelRouter)(nil)

// Close closes every registered channel, returning the first error.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
