package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// LLMConfigRequest is the create payload for a chat model row. Activate
// switches the live client over in the same request.
type LLMConfigRequest struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int32   `json:"max_tokens"`
	Activate    bool    `json:"activate"`
}

// EmbeddingConfigRequest is the create payload for an embedding model row.
type EmbeddingConfigRequest struct {
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	VectorSize int32  `json:"vector_size"`
	Activate   bool   `json:"activate"`
}

// ModelsResponse lists every configured model, credentials redacted.
type ModelsResponse struct {
	LLMs       []*LLMConfigResponse       `json:"llms"`
	Embeddings []*EmbeddingConfigResponse `json:"embeddings"`
}

func (s *APIV1Service) listModels(c echo.Context) error {
	ctx := c.Request().Context()
	llms, err := s.Store.ListLLMConfigs(ctx, &store.FindLLMConfig{})
	if err != nil {
		return respondError(c, err)
	}
	embeddings, err := s.Store.ListEmbeddingModelConfigs(ctx, &store.FindEmbeddingModelConfig{})
	if err != nil {
		return respondError(c, err)
	}
	out := &ModelsResponse{
		LLMs:       make([]*LLMConfigResponse, 0, len(llms)),
		Embeddings: make([]*EmbeddingConfigResponse, 0, len(embeddings)),
	}
	for _, row := range llms {
		out.LLMs = append(out.LLMs, convertLLMConfig(row))
	}
	for _, row := range embeddings {
		out.Embeddings = append(out.Embeddings, convertEmbeddingConfig(row))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createLLMConfig(c echo.Context) error {
	ctx := c.Request().Context()
	req := &LLMConfigRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed model payload")
	}
	if req.Name == "" || req.Provider == "" || req.Model == "" {
		return badRequest(c, "name, provider and model are required")
	}
	row, err := s.Store.CreateLLMConfig(ctx, &store.LLMConfig{
		Name:        req.Name,
		Provider:    req.Provider,
		Model:       req.Model,
		APIKey:      req.APIKey,
		BaseURL:     req.BaseURL,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return respondError(c, err)
	}
	if req.Activate {
		row, err = s.activateLLMByID(ctx, row.ID)
		if err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(http.StatusCreated, convertLLMConfig(row))
}

func (s *APIV1Service) activateLLMConfig(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	row, err := s.activateLLMByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertLLMConfig(row))
}

func (s *APIV1Service) createEmbeddingConfig(c echo.Context) error {
	ctx := c.Request().Context()
	req := &EmbeddingConfigRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed model payload")
	}
	if req.Name == "" || req.Provider == "" || req.Model == "" {
		return badRequest(c, "name, provider and model are required")
	}
	row, err := s.Store.CreateEmbeddingModelConfig(ctx, &store.EmbeddingModelConfig{
		Name:       req.Name,
		Provider:   req.Provider,
		Model:      req.Model,
		APIKey:     req.APIKey,
		BaseURL:    req.BaseURL,
		VectorSize: req.VectorSize,
	})
	if err != nil {
		return respondError(c, err)
	}
	if req.Activate {
		row, err = s.activateEmbeddingByID(ctx, row.ID)
		if err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(http.StatusCreated, convertEmbeddingConfig(row))
}

func (s *APIV1Service) activateEmbeddingConfig(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	row, err := s.activateEmbeddingByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertEmbeddingConfig(row))
}

// activateLLMByID marks the row active, builds a client from it and swaps
// the orchestrator over. The retriever is rebuilt so knowledge answers use
// the new model too. The store deactivates sibling rows in the same
// transaction that activates this one.
func (s *APIV1Service) activateLLMByID(ctx context.Context, id int32) (*store.LLMConfig, error) {
	active := true
	row, err := s.Store.UpdateLLMConfig(ctx, &store.UpdateLLMConfig{ID: id, IsActive: &active})
	if err != nil {
		return nil, err
	}
	svc, err := llm.NewService(&llm.Config{
		Provider:    row.Provider,
		Model:       row.Model,
		APIKey:      row.APIKey,
		BaseURL:     row.BaseURL,
		Temperature: float32(row.Temperature),
		MaxTokens:   int(row.MaxTokens),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "build llm client", err)
	}
	if err := s.Assistant.SwapLLM(ctx, svc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.llm = svc
	embedder := s.embedder
	s.mu.Unlock()
	if embedder != nil {
		s.Assistant.SwapRAG(rag.NewService(s.Store, embedder, svc))
	}
	slog.Info("llm model activated", "name", row.Name, "provider", row.Provider, "model", row.Model)
	return row, nil
}

// activateEmbeddingByID mirrors activateLLMByID for the embedding side: the
// L2 classifier, the retriever and document ingestion all move to the new
// client. Existing chunk vectors are NOT re-embedded; mixing vector spaces
// degrades retrieval until documents are re-ingested.
func (s *APIV1Service) activateEmbeddingByID(ctx context.Context, id int32) (*store.EmbeddingModelConfig, error) {
	active := true
	row, err := s.Store.UpdateEmbeddingModelConfig(ctx, &store.UpdateEmbeddingModelConfig{ID: id, IsActive: &active})
	if err != nil {
		return nil, err
	}
	svc, err := embedding.NewService(&embedding.Config{
		Provider:   row.Provider,
		Model:      row.Model,
		APIKey:     row.APIKey,
		BaseURL:    row.BaseURL,
		Dimensions: int(row.VectorSize),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "build embedding client", err)
	}
	if err := s.Assistant.SwapEmbedder(ctx, svc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.embedder = svc
	current := s.llm
	s.mu.Unlock()
	if current != nil {
		s.Assistant.SwapRAG(rag.NewService(s.Store, svc, current))
	}
	go func() {
		warmupCtx, cancel := context.WithTimeout(context.Background(), classifierWarmupTimeout)
		defer cancel()
		if err := s.Assistant.WarmupClassifier(warmupCtx); err != nil {
			slog.Warn("classifier warmup after embedding swap failed", "error", err)
		}
	}()
	slog.Info("embedding model activated", "name", row.Name, "provider", row.Provider, "model", row.Model)
	return row, nil
}
