// Package webhook delivers signed appointment events to an admin-configured
// endpoint and verifies inbound signatures.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/queryon/queryon/ai/metrics"
)

// timeout bounds one delivery attempt. Non-2xx and transport failures are
// logged, never retried here.
var timeout = 10 * time.Second

// Events this dispatcher emits.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCancelled = "appointment.cancelled"
)

const signaturePrefix = "sha256="

// Payload is the wire shape of one delivery.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Dispatcher posts signed events. The zero value is not usable; construct
// with NewDispatcher.
type Dispatcher struct {
	client  *http.Client
	metrics *metrics.Exporter
}

// NewDispatcher builds a dispatcher. exporter may be nil.
func NewDispatcher(exporter *metrics.Exporter) *Dispatcher {
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		metrics: exporter,
	}
}

// Post delivers one event synchronously. A missing URL or secret is a
// silent no-op so unconfigured installations pay nothing.
func (d *Dispatcher) Post(ctx context.Context, url, secret, event string, data map[string]any) error {
	if url == "" || secret == "" {
		d.record(event, "skipped")
		return nil
	}

	body, err := json.Marshal(&Payload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		d.record(event, "failed")
		return errors.Wrapf(err, "failed to marshal webhook payload for %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.record(event, "failed")
		return errors.Wrapf(err, "failed to construct webhook request to %s", url)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Queryon-Event", event)
	req.Header.Set("X-Queryon-Delivery", uuid.NewString())
	req.Header.Set("X-Queryon-Signature", signaturePrefix+Sign(secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		d.record(event, "failed")
		return errors.Wrapf(err, "failed to post webhook to %s", url)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.record(event, "failed")
		return errors.Errorf("webhook %s returned status %d", url, resp.StatusCode)
	}

	d.record(event, "delivered")
	return nil
}

// PostAsync delivers one event on a fresh goroutine and never blocks the
// caller. Failures are logged only.
func (d *Dispatcher) PostAsync(url, secret, event string, data map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.Post(ctx, url, secret, event, data); err != nil {
			slog.Warn("failed to dispatch webhook",
				slog.String("event", event),
				slog.Any("err", err))
		}
	}()
}

func (d *Dispatcher) record(event, outcome string) {
	if d.metrics != nil {
		d.metrics.RecordWebhookDelivery(event, outcome)
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a caller-provided signature against the body. The optional
// "sha256=" prefix is accepted; comparison is constant time.
func Verify(body []byte, secret, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	if len(provided) > len(signaturePrefix) && provided[:len(signaturePrefix)] == signaturePrefix {
		provided = provided[len(signaturePrefix):]
	}
	want := Sign(secret, body)
	return hmac.Equal([]byte(want), []byte(provided))
}
