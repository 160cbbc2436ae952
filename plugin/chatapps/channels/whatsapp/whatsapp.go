// Package whatsapp implements the WhatsApp Business Cloud API channel.
// Inbound traffic arrives on Meta's webhook, replies go out through the
// Graph API messages endpoint.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/store"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v18.0"
	sendTimeout       = 20 * time.Second

	maxErrorBody = 2 << 10
)

// Config holds the Cloud API credentials. AppSecret is optional; when set,
// X-Hub-Signature-256 is enforced on every webhook body.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	APIVersion    string
	BaseURL       string // test override
}

// Channel implements chatapps.ChatChannel for the Cloud API.
type Channel struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Channel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Channel{cfg: cfg, client: &http.Client{Timeout: sendTimeout}}
}

func (c *Channel) Name() store.Platform {
	return store.PlatformWhatsApp
}

// VerifyHandshake answers Meta's GET subscription challenge. The returned
// bool reports whether the caller presented the configured verify token.
func (c *Channel) VerifyHandshake(query url.Values) (string, bool) {
	if c.cfg.VerifyToken == "" {
		return "", false
	}
	if query.Get("hub.mode") == "subscribe" && query.Get("hub.verify_token") == c.cfg.VerifyToken {
		return query.Get("hub.challenge"), true
	}
	return "", false
}

// ValidateWebhook checks the HMAC header when an app secret is configured.
func (c *Channel) ValidateWebhook(_ context.Context, headers map[string]string, body []byte) error {
	if c.cfg.AppSecret == "" {
		return nil
	}
	if !webhook.Verify(body, c.cfg.AppSecret, headers["X-Hub-Signature-256"]) {
		return chatapps.ErrInvalidSignature
	}
	return nil
}

// inboundPayload mirrors the slice of Meta's webhook body the assistant
// reads. Status and delivery receipts arrive with an empty messages array.
type inboundPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseMessage extracts the first text message of the batch. Receipts and
// media messages yield a nil message so the webhook still gets its 200.
func (c *Channel) ParseMessage(_ context.Context, payload []byte) (*chatapps.IncomingMessage, error) {
	var in inboundPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		slog.Warn("whatsapp: unparseable webhook body", "error", err)
		return nil, chatapps.ErrInvalidPayload
	}
	if len(in.Entry) == 0 || len(in.Entry[0].Changes) == 0 {
		return nil, nil
	}
	value := in.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, nil
	}

	wa := value.Messages[0]
	if wa.Type != "text" || wa.Text == nil {
		slog.Debug("whatsapp: ignoring non-text message", "type", wa.Type, "from", wa.From)
		return nil, nil
	}

	msg := &chatapps.IncomingMessage{
		Platform:  store.PlatformWhatsApp,
		ChatID:    wa.From,
		Phone:     wa.From,
		Text:      wa.Text.Body,
		Timestamp: time.Now(),
	}
	if len(value.Contacts) > 0 {
		msg.Name = value.Contacts[0].Profile.Name
	}
	return msg, nil
}

// SendMessage posts one text reply to the Graph API.
func (c *Channel) SendMessage(ctx context.Context, msg *chatapps.OutgoingMessage) error {
	body, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.ChatID,
		"type":              "text",
		"text":              map[string]string{"body": msg.Text},
	})
	if err != nil {
		return errors.Wrap(err, "marshal whatsapp message")
	}

	endpoint := c.cfg.BaseURL + "/" + c.cfg.APIVersion + "/" + c.cfg.PhoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build whatsapp request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post whatsapp message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("whatsapp send failed: %s: %s", resp.Status, snippet)
	}
	return nil
}

func (c *Channel) Close() error {
	return nil
}

var _ chatapps.ChatChannel = (*Channel)(nil)
