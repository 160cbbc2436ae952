// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/store"
)

// Config holds the bot credentials. APIEndpoint overrides the Bot API base
// URL format for tests; it must carry the two %s verbs of
// tgbotapi.APIEndpoint.
type Config struct {
	BotToken    string
	APIEndpoint string
}

// Channel implements chatapps.ChatChannel for the Telegram Bot API.
type Channel struct {
	bot *tgbotapi.BotAPI
}

// New connects to the Bot API and verifies the token with a getMe call.
func New(cfg Config) (*Channel, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	return &Channel{bot: bot}, nil
}

func (c *Channel) Name() store.Platform {
	return store.PlatformTelegram
}

// ValidateWebhook is a no-op: the Bot API does not sign webhook calls, the
// unguessable webhook path is the shared secret.
func (c *Channel) ValidateWebhook(context.Context, map[string]string, []byte) error {
	return nil
}

// ParseMessage extracts the text message from an update. Edits, callbacks
// and media turns are acknowledged silently with a nil message.
func (c *Channel) ParseMessage(_ context.Context, payload []byte) (*chatapps.IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: unparseable update", "error", err)
		return nil, chatapps.ErrInvalidPayload
	}
	tgMsg := update.Message
	if tgMsg == nil || tgMsg.Chat == nil || tgMsg.Text == "" {
		return nil, nil
	}

	msg := &chatapps.IncomingMessage{
		Platform:  store.PlatformTelegram,
		ChatID:    strconv.FormatInt(tgMsg.Chat.ID, 10),
		Text:      tgMsg.Text,
		Timestamp: time.Now(),
	}
	if tgMsg.From != nil {
		msg.Name = tgMsg.From.FirstName
		msg.Username = tgMsg.From.UserName
	}
	return msg, nil
}

// SendMessage delivers one plain-text reply. Telegram parse modes are left
// off so free-form model output cannot break entity parsing.
func (c *Channel) SendMessage(_ context.Context, msg *chatapps.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid telegram chat id %q", msg.ChatID)
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, msg.Text)); err != nil {
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}

// SetWebhook points the bot at webhookURL, dropping queued updates so a
// redeploy does not replay stale conversations.
func (c *Channel) SetWebhook(webhookURL string) error {
	parsed, err := url.Parse(webhookURL)
	if err != nil {
		return errors.Wrap(err, "parse webhook url")
	}
	_, err = c.bot.Request(tgbotapi.WebhookConfig{URL: parsed, DropPendingUpdates: true})
	return errors.Wrap(err, "set telegram webhook")
}

func (c *Channel) Close() error {
	return nil
}

var _ chatapps.ChatChannel = (*Channel)(nil)
