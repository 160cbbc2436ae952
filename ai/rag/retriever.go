package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/store"
)

const (
	defaultTopK     = 5
	defaultMinScore = 0.35
	snippetLimit    = 240
)

const defaultAnswerPrompt = "Sen bir işletme asistanısın. Aşağıdaki kaynak pasajlara dayanarak müşterinin " +
	"sorusunu yanıtla. Kaynaklarda olmayan bilgiyi uydurma; yanıt kaynaklarda yoksa bunu açıkça söyle."

type service struct {
	store    *store.Store
	embedder embedding.Service
	llm      llm.Service
}

// NewService builds the pgvector-backed retriever. Retrieval knobs come from
// the rag_config row on every call so admin edits apply without restart.
func NewService(st *store.Store, embedder embedding.Service, llmSvc llm.Service) Service {
	return &service{store: st, embedder: embedder, llm: llmSvc}
}

func (s *service) Ask(ctx context.Context, query string) (string, []Source, error) {
	topK, minScore, answerPrompt := s.loadConfig(ctx)

	sources, err := s.search(ctx, query, topK, minScore)
	if err != nil {
		return "", nil, err
	}
	if len(sources) == 0 {
		return "", nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Kaynaklar:\n")
	for i, src := range sources {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, src.Title, src.Snippet)
	}
	fmt.Fprintf(&sb, "\nSoru: %s", query)

	reply, _, err := s.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(answerPrompt),
		llm.UserMessage(sb.String()),
	})
	if err != nil {
		return "", sources, fmt.Errorf("synthesise answer: %w", err)
	}

	return strings.TrimSpace(reply), sources, nil
}

func (s *service) Search(ctx context.Context, query string, topK int) ([]Source, error) {
	cfgTopK, minScore, _ := s.loadConfig(ctx)
	if topK <= 0 {
		topK = cfgTopK
	}
	return s.search(ctx, query, topK, minScore)
}

func (s *service) search(ctx context.Context, query string, topK int, minScore float64) ([]Source, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.SearchDocumentChunks(ctx, &store.ChunkSearchOptions{
		Vector:   vector,
		TopK:     topK,
		MinScore: minScore,
	})
	if err != nil {
		// store.ErrVectorUnsupported passes through untouched so the
		// orchestrator can apply its when_rag_unavailable policy.
		return nil, err
	}

	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, Source{
			Title:   hit.Title,
			Snippet: truncateSnippet(hit.Chunk.Content),
			Score:   hit.Score,
		})
	}
	return sources, nil
}

func (s *service) loadConfig(ctx context.Context) (topK int, minScore float64, answerPrompt string) {
	topK, minScore, answerPrompt = defaultTopK, defaultMinScore, defaultAnswerPrompt

	cfg, err := s.store.GetRAGConfig(ctx)
	if err != nil {
		slog.Debug("rag config unavailable, using defaults", "error", err)
		return topK, minScore, answerPrompt
	}
	if cfg.TopK > 0 {
		topK = int(cfg.TopK)
	}
	if cfg.MinScore > 0 {
		minScore = cfg.MinScore
	}
	if cfg.AnswerPrompt != "" {
		answerPrompt = cfg.AnswerPrompt
	}
	return topK, minScore, answerPrompt
}

func truncateSnippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetLimit {
		return string(runes)
	}
	return string(runes[:snippetLimit]) + "…"
}
