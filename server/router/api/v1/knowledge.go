package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// KnowledgeDocumentRequest is the ingestion payload. Content is chunked and
// embedded synchronously; large documents take as long as the embedding
// provider needs.
type KnowledgeDocumentRequest struct {
	Title      string `json:"title"`
	SourceName string `json:"source_name"`
	Content    string `json:"content"`
}

func (s *APIV1Service) listKnowledgeDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	limit, _ := listWindow(c)
	documents, err := s.Store.ListKnowledgeDocuments(ctx, &store.FindKnowledgeDocument{Limit: &limit})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*KnowledgeDocumentResponse, 0, len(documents))
	for _, document := range documents {
		out = append(out, convertKnowledgeDocument(document))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createKnowledgeDocument(c echo.Context) error {
	ctx := c.Request().Context()
	embedder := s.currentEmbedder()
	if embedder == nil {
		return respondError(c, errs.New(errs.KindConfiguration, "knowledge ingestion requires an embedding model"))
	}
	req := &KnowledgeDocumentRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed document payload")
	}
	if req.Title == "" {
		return badRequest(c, "title is required")
	}
	if req.Content == "" {
		return badRequest(c, "content is required")
	}

	pieces := rag.Chunk(req.Content, 0)
	vectors, err := embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return respondError(c, err)
	}
	if len(vectors) != len(pieces) {
		return respondError(c, errs.Newf(errs.KindExternalService,
			"embedding provider returned %d vectors for %d chunks", len(vectors), len(pieces)))
	}

	document, err := s.Store.CreateKnowledgeDocument(ctx, &store.KnowledgeDocument{
		Title:      req.Title,
		SourceName: req.SourceName,
		MimeType:   "text/plain",
		ChunkCount: int32(len(pieces)),
	})
	if err != nil {
		return respondError(c, err)
	}
	chunks := make([]*store.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &store.DocumentChunk{
			DocumentID: document.ID,
			ChunkIndex: int32(i),
			Content:    piece,
			Embedding:  vectors[i],
		}
	}
	if err := s.Store.CreateDocumentChunks(ctx, chunks); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, convertKnowledgeDocument(document))
}

// deleteKnowledgeDocument removes the document; chunks cascade with it.
func (s *APIV1Service) deleteKnowledgeDocument(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Store.DeleteKnowledgeDocument(ctx, &store.DeleteKnowledgeDocument{ID: id}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) currentEmbedder() embedding.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder
}
