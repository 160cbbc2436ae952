package v1

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/chatapps/channels/whatsapp"
	"github.com/queryon/queryon/store"
)

const (
	// maxWebhookBody bounds one inbound platform update.
	maxWebhookBody = 256 << 10

	// channelTurnTimeout bounds the background processing of one channel
	// message, webhook ack excluded.
	channelTurnTimeout = 60 * time.Second
)

func (s *APIV1Service) handleTelegramWebhook(c echo.Context) error {
	return s.ingestChannelWebhook(c, store.PlatformTelegram)
}

func (s *APIV1Service) handleWhatsAppWebhook(c echo.Context) error {
	return s.ingestChannelWebhook(c, store.PlatformWhatsApp)
}

// handleWhatsAppVerify answers Meta's subscription handshake.
func (s *APIV1Service) handleWhatsAppVerify(c echo.Context) error {
	ch, ok := s.channels.Channel(store.PlatformWhatsApp).(*whatsapp.Channel)
	if !ok {
		return respondError(c, errs.New(errs.KindNotFound, "whatsapp channel not configured"))
	}
	challenge, ok := ch.VerifyHandshake(c.QueryParams())
	if !ok {
		return c.NoContent(http.StatusForbidden)
	}
	return c.String(http.StatusOK, challenge)
}

// ingestChannelWebhook validates and parses an inbound update, then hands it
// to a background worker. Platforms redeliver on non-2xx, so anything that
// is our data and not our failure gets an immediate 200.
func (s *APIV1Service) ingestChannelWebhook(c echo.Context, platform store.Platform) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable request body")
	}

	msg, err := s.channels.HandleWebhook(c.Request().Context(), platform, headerMap(c), body)
	if err != nil {
		switch {
		case errors.Is(err, chatapps.ErrNoChannel):
			return respondError(c, errs.Newf(errs.KindNotFound, "%s channel not configured", platform))
		case errors.Is(err, chatapps.ErrInvalidSignature):
			return respondError(c, errs.New(errs.KindUnauthorized, "invalid webhook signature"))
		default:
			// Unparseable updates are acknowledged so the platform
			// stops redelivering them. The router already counted the
			// parse error.
			return c.NoContent(http.StatusOK)
		}
	}
	if msg == nil {
		// Receipt, edit or media update.
		return c.NoContent(http.StatusOK)
	}

	go s.processChannelMessage(msg)

	return c.NoContent(http.StatusOK)
}

// processChannelMessage runs one turn for a push-channel message and sends
// the answer back. Runs detached from the webhook request with its own
// deadline.
func (s *APIV1Service) processChannelMessage(msg *chatapps.IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), channelTurnTimeout)
	defer cancel()
	start := time.Now()

	conversation, err := s.resolveChannelConversation(ctx, msg)
	if err != nil {
		slog.Error("channel conversation lookup failed",
			"platform", msg.Platform, "chat_id", msg.ChatID, "error", err)
		return
	}

	resp, err := s.Assistant.ProcessMessage(ctx, conversation.ID, msg.Text)
	if err != nil {
		slog.Error("channel turn failed",
			"platform", msg.Platform, "conversation", conversation.UID, "error", err)
		return
	}
	s.channels.RecordProcessed(msg.Platform, time.Since(start))

	if resp.Silent || resp.Answer == "" {
		return
	}
	if err := s.channels.SendResponse(ctx, msg.Platform, &chatapps.OutgoingMessage{
		ChatID: msg.ChatID,
		Text:   resp.Answer,
	}); err != nil {
		slog.Error("channel send failed",
			"platform", msg.Platform, "conversation", conversation.UID, "error", err)
	}
}

// resolveChannelConversation reuses the contact's active conversation or
// starts one carrying the contact fields the platform handed us.
func (s *APIV1Service) resolveChannelConversation(ctx context.Context, msg *chatapps.IncomingMessage) (*store.Conversation, error) {
	conversation, err := s.Store.GetActiveConversationByChannel(ctx, msg.Platform, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		return conversation, nil
	}

	create := &store.Conversation{
		Platform:  msg.Platform,
		ChannelID: &msg.ChatID,
	}
	if msg.Name != "" {
		create.Name = &msg.Name
	}
	if msg.Username != "" {
		create.Username = &msg.Username
	}
	if msg.Phone != "" {
		create.Phone = &msg.Phone
	}
	return s.Store.StartConversation(ctx, create)
}

// channelMetrics exposes the per-platform ingress counters.
func (s *APIV1Service) channelMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.channels.Metrics().All())
}

func headerMap(c echo.Context) map[string]string {
	headers := make(map[string]string, len(c.Request().Header))
	for name := range c.Request().Header {
		headers[name] = c.Request().Header.Get(name)
	}
	return headers
}
