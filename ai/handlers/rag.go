package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/rag"
)

// contextTurns is how many trailing turns are prepended to the retrieval
// query so pronouns resolve ("bu paket", "onun fiyatı").
const contextTurns = 4

// RAGHandler answers from the knowledge base.
type RAGHandler struct {
	rag rag.Service
}

func NewRAGHandler(svc rag.Service) *RAGHandler {
	return &RAGHandler{rag: svc}
}

func (h *RAGHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		Query:          req.Query,
		Intent:         classify.IntentRAG,
		Classification: req.Classification,
	}
	if h.rag == nil {
		return result, nil
	}

	answer, sources, err := h.rag.Ask(ctx, enrichQuery(req.Query, req.History))
	if err != nil {
		// Vector-unsupported and provider failures both surface a nil
		// answer; the orchestrator applies its fallback policy.
		slog.Warn("rag ask failed", "error", err)
		result.Metadata.Error = err.Error()
		return result, nil
	}

	result.Sources = sources
	if strings.TrimSpace(answer) != "" {
		result.Answer = strPtr(answer)
	}
	return result, nil
}

// enrichQuery prefixes the last few turns so the retriever sees what "o"
// or "bu" refers to.
func enrichQuery(query string, history []llm.Message) string {
	if len(history) == 0 {
		return query
	}
	start := len(history) - contextTurns
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	for _, m := range history[start:] {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "\nSoru: %s", query)
	return sb.String()
}
