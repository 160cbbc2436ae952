package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/llm"
)

// DirectHandler is a plain LLM completion over the conversation transcript.
type DirectHandler struct {
	llm          llm.Service
	systemPrompt string
}

// NewDirectHandler wraps the LLM. systemPrompt may be empty.
func NewDirectHandler(svc llm.Service, systemPrompt string) *DirectHandler {
	return &DirectHandler{llm: svc, systemPrompt: systemPrompt}
}

func (h *DirectHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		Query:          req.Query,
		Intent:         classify.IntentDirect,
		Classification: req.Classification,
	}
	if h.llm == nil {
		return result, nil
	}

	var sb strings.Builder
	for _, m := range req.History {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "user: %s", req.Query)

	messages := make([]llm.Message, 0, 2)
	if h.systemPrompt != "" {
		messages = append(messages, llm.SystemPrompt(h.systemPrompt))
	}
	messages = append(messages, llm.UserMessage(sb.String()))

	reply, _, err := h.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("direct completion failed", "error", err)
		result.Metadata.Error = err.Error()
		return result, nil
	}

	if reply = strings.TrimSpace(reply); reply != "" {
		result.Answer = strPtr(reply)
	}
	return result, nil
}
