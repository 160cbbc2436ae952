// Package web implements the embedded web widget channel. Unlike the push
// platforms, replies travel back on the HTTP response that carried the
// question, so SendMessage is a no-op.
package web

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/store"
)

// ChatRequest is the widget's wire request. ConversationID is empty on the
// first turn; the widget echoes back the UID the first response assigned.
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the widget's wire reply for one turn.
type ChatResponse struct {
	ConversationID     string       `json:"conversation_id"`
	Answer             string       `json:"answer"`
	AnswerHTML         string       `json:"answer_html,omitempty"`
	Intent             string       `json:"intent"`
	Confidence         float64      `json:"confidence"`
	ClassifierLayer    string       `json:"classifier_layer"`
	RuleMatched        string       `json:"rule_matched,omitempty"`
	FallbackUsed       bool         `json:"fallback_used"`
	NeedsClarification bool         `json:"needs_clarification"`
	Sources            []rag.Source `json:"sources,omitempty"`
}

// Channel implements chatapps.ChatChannel so web traffic shares the
// router's ingress metrics with the push platforms.
type Channel struct{}

func New() *Channel {
	return &Channel{}
}

func (c *Channel) Name() store.Platform {
	return store.PlatformWeb
}

func (c *Channel) ValidateWebhook(context.Context, map[string]string, []byte) error {
	return nil
}

func (c *Channel) ParseMessage(_ context.Context, payload []byte) (*chatapps.IncomingMessage, error) {
	var req ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, chatapps.ErrInvalidPayload
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, chatapps.ErrInvalidPayload
	}
	return &chatapps.IncomingMessage{
		Platform:  store.PlatformWeb,
		ChatID:    strings.TrimSpace(req.ConversationID),
		Text:      query,
		Timestamp: time.Now(),
	}, nil
}

func (c *Channel) SendMessage(context.Context, *chatapps.OutgoingMessage) error {
	return nil
}

func (c *Channel) Close() error {
	return nil
}

var _ chatapps.ChatChannel = (*Channel)(nil)
