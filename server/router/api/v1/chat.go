package v1

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/chatapps/channels/web"
	"github.com/queryon/queryon/store"
)

// maxChatBody bounds one web chat request.
const maxChatBody = 64 << 10

// handleChat serves the web widget. The reply rides the same HTTP exchange,
// so unlike the push channels this handler waits for the orchestrator.
func (s *APIV1Service) handleChat(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxChatBody))
	if err != nil {
		return badRequest(c, "unreadable request body")
	}

	msg, err := s.channels.HandleWebhook(ctx, store.PlatformWeb, nil, body)
	if err != nil {
		return badRequest(c, "query is required")
	}

	conversation, err := s.resolveWebConversation(c, msg)
	if err != nil {
		return respondError(c, err)
	}

	resp, err := s.Assistant.ProcessMessage(ctx, conversation.ID, msg.Text)
	if err != nil {
		return respondError(c, err)
	}
	s.channels.RecordProcessed(store.PlatformWeb, time.Since(start))

	out := &web.ChatResponse{
		ConversationID:     conversation.UID,
		Answer:             resp.Answer,
		Intent:             string(resp.Intent),
		Confidence:         resp.Confidence,
		FallbackUsed:       resp.FallbackUsed,
		NeedsClarification: resp.NeedsClarification,
		Sources:            resp.Sources,
	}
	if resp.RuleMatched != nil {
		out.RuleMatched = *resp.RuleMatched
	}
	if resp.Metrics != nil {
		out.ClassifierLayer = resp.Metrics.ClassifierLayer
	}
	if !resp.Silent {
		html, renderErr := s.Markdown.ToHTML(resp.Answer)
		if renderErr != nil {
			slog.Warn("markdown render failed", "conversation", conversation.UID, "error", renderErr)
		} else {
			out.AnswerHTML = html
		}
	}

	return c.JSON(http.StatusOK, out)
}

// resolveWebConversation finds the conversation named by the request UID or
// starts a fresh one for a first turn.
func (s *APIV1Service) resolveWebConversation(c echo.Context, msg *chatapps.IncomingMessage) (*store.Conversation, error) {
	ctx := c.Request().Context()

	if msg.ChatID != "" {
		conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{UID: &msg.ChatID})
		if err != nil {
			return nil, err
		}
		if conversation == nil {
			return nil, errs.Newf(errs.KindNotFound, "conversation %s not found", msg.ChatID)
		}
		return conversation, nil
	}

	return s.Store.StartConversation(ctx, &store.Conversation{Platform: store.PlatformWeb})
}
