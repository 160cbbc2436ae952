package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

func withEmbedder(svc *APIV1Service, e *fakeEmbedder) {
	svc.mu.Lock()
	svc.embedder = e
	svc.mu.Unlock()
}

func TestCreateKnowledgeDocument(t *testing.T) {
	t.Run("rejected without an embedding model", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/knowledge/documents",
			`{"title": "SSS", "content": "Kapora iade edilmez."}`, testAdminKey)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "embedding model")
	})

	t.Run("chunks, embeds and persists", func(t *testing.T) {
		driver := newFakeDriver()
		svc, _ := newTestService(driver)
		withEmbedder(svc, &fakeEmbedder{})

		// Two paragraphs that together exceed the chunk budget, so the
		// splitter keeps them apart.
		para1 := strings.TrimSpace(strings.Repeat("Dövme sonrası bakım kremi günde iki kez sürülür. ", 20))
		para2 := strings.TrimSpace(strings.Repeat("Kapora randevu tarihinden üç gün önce iade edilebilir. ", 20))
		body, err := json.Marshal(map[string]string{
			"title":       "bakım ve iade koşulları",
			"source_name": "sss.md",
			"content":     para1 + "\n\n" + para2,
		})
		require.NoError(t, err)

		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/knowledge/documents", string(body), testAdminKey)
		require.Equal(t, http.StatusCreated, rec.Code)

		var out KnowledgeDocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "bakım ve iade koşulları", out.Title)
		assert.Equal(t, "sss.md", out.SourceName)
		assert.Equal(t, int32(2), out.ChunkCount)

		driver.mu.Lock()
		defer driver.mu.Unlock()
		require.Len(t, driver.chunks, 2)
		assert.Equal(t, out.ID, driver.chunks[0].DocumentID)
		assert.Equal(t, int32(0), driver.chunks[0].ChunkIndex)
		assert.Equal(t, int32(1), driver.chunks[1].ChunkIndex)
		assert.Equal(t, para1, driver.chunks[0].Content)
		assert.Equal(t, para2, driver.chunks[1].Content)
		assert.Len(t, driver.chunks[0].Embedding, 4)
	})

	t.Run("validates the payload", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		withEmbedder(svc, &fakeEmbedder{})
		e := newTestEcho(svc)

		missingTitle := doJSON(e, http.MethodPost, "/api/v1/knowledge/documents",
			`{"content": "x"}`, testAdminKey)
		assert.Equal(t, http.StatusBadRequest, missingTitle.Code)
		assert.Contains(t, missingTitle.Body.String(), "title is required")

		missingContent := doJSON(e, http.MethodPost, "/api/v1/knowledge/documents",
			`{"title": "x"}`, testAdminKey)
		assert.Equal(t, http.StatusBadRequest, missingContent.Code)
		assert.Contains(t, missingContent.Body.String(), "content is required")
	})

	t.Run("embedding failure leaves nothing behind", func(t *testing.T) {
		driver := newFakeDriver()
		svc, _ := newTestService(driver)
		withEmbedder(svc, &fakeEmbedder{err: errs.New(errs.KindExternalService, "embedding provider unreachable")})

		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/knowledge/documents",
			`{"title": "SSS", "content": "Kapora iade edilmez."}`, testAdminKey)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "unreachable")

		driver.mu.Lock()
		defer driver.mu.Unlock()
		assert.Empty(t, driver.documents)
		assert.Empty(t, driver.chunks)
	})
}

func TestListKnowledgeDocuments(t *testing.T) {
	driver := newFakeDriver()
	svc, _ := newTestService(driver)
	ctx := context.Background()

	for _, title := range []string{"fiyat listesi", "bakım rehberi"} {
		_, err := driver.CreateKnowledgeDocument(ctx, &store.KnowledgeDocument{Title: title, ChunkCount: 1})
		require.NoError(t, err)
	}

	rec := doJSON(newTestEcho(svc), http.MethodGet, "/api/v1/knowledge/documents", "", testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []*KnowledgeDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}

func TestDeleteKnowledgeDocument(t *testing.T) {
	driver := newFakeDriver()
	svc, _ := newTestService(driver)
	ctx := context.Background()

	doc, err := driver.CreateKnowledgeDocument(ctx, &store.KnowledgeDocument{Title: "sss", ChunkCount: 2})
	require.NoError(t, err)
	require.NoError(t, driver.CreateDocumentChunks(ctx, []*store.DocumentChunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "a"},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "b"},
	}))

	e := newTestEcho(svc)
	rec := doJSON(e, http.MethodDelete, "/api/v1/knowledge/documents/1", "", testAdminKey)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	driver.mu.Lock()
	assert.Empty(t, driver.documents)
	assert.Empty(t, driver.chunks, "chunks cascade with the document")
	driver.mu.Unlock()

	badID := doJSON(e, http.MethodDelete, "/api/v1/knowledge/documents/abc", "", testAdminKey)
	assert.Equal(t, http.StatusBadRequest, badID.Code)
}
