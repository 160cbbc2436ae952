package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

func (s *APIV1Service) listConversations(c echo.Context) error {
	ctx := c.Request().Context()
	filter, err := parseConversationFilter(c.QueryParam("filter"))
	if err != nil {
		return respondError(c, err)
	}
	limit, offset := listWindow(c)
	find := &store.FindConversation{
		Platform: filter.Platform,
		Status:   filter.Status,
		Limit:    &limit,
		Offset:   &offset,
	}
	conversations, err := s.Store.ListConversations(ctx, find)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, convertConversation(conversation))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) getConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.conversationByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertConversation(conversation))
}

func (s *APIV1Service) closeConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.conversationByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	closed, err := s.Store.CloseConversation(ctx, conversation.ID)
	if err != nil {
		return respondError(c, err)
	}
	if !closed {
		return respondError(c, errs.Newf(errs.KindNotFound, "conversation %d not found", conversation.ID))
	}
	return c.NoContent(http.StatusNoContent)
}

// listConversationMessages returns the full turn history with the pipeline
// event log attached to each message. Admin debugging wants the whole
// picture, so events are always included.
func (s *APIV1Service) listConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()
	conversation, err := s.conversationByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*MessageResponse, 0, len(messages))
	for _, message := range messages {
		events, err := s.Store.ListMessageEvents(ctx, &store.FindMessageEvent{MessageID: &message.ID})
		if err != nil {
			return respondError(c, err)
		}
		out = append(out, convertMessage(message, events))
	}
	return c.JSON(http.StatusOK, out)
}

// conversationByRef resolves a path segment that is either the numeric row id
// or the public UID.
func (s *APIV1Service) conversationByRef(ctx context.Context, ref string) (*store.Conversation, error) {
	find := &store.FindConversation{}
	if id, err := strconv.ParseInt(ref, 10, 32); err == nil {
		id32 := int32(id)
		find.ID = &id32
	} else {
		find.UID = &ref
	}
	conversation, err := s.Store.GetConversation(ctx, find)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errs.Newf(errs.KindNotFound, "conversation %s not found", ref)
	}
	return conversation, nil
}
