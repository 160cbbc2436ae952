package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/plugin/chatapps/channels/web"
	"github.com/queryon/queryon/store"
)

func TestHandleChat(t *testing.T) {
	t.Run("first turn starts a conversation", func(t *testing.T) {
		driver := newFakeDriver()
		svc, assistant := newTestService(driver)
		e := newTestEcho(svc)

		rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "merhaba"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp web.ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ConversationID)
		assert.Equal(t, "ok", resp.Answer)

		conversations, err := driver.ListConversations(context.Background(), &store.FindConversation{})
		require.NoError(t, err)
		require.Len(t, conversations, 1)
		assert.Equal(t, store.PlatformWeb, conversations[0].Platform)
		assert.Equal(t, resp.ConversationID, conversations[0].UID)
		require.Len(t, assistant.queries, 1)
		assert.Equal(t, "merhaba", assistant.queries[0])
	})

	t.Run("follow-up reuses the conversation", func(t *testing.T) {
		driver := newFakeDriver()
		svc, assistant := newTestService(driver)
		e := newTestEcho(svc)

		first := doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "merhaba"}`, "")
		require.Equal(t, http.StatusOK, first.Code)
		var opened web.ChatResponse
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &opened))

		second := doJSON(e, http.MethodPost, "/api/v1/chat",
			`{"query": "fiyat", "conversation_id": "`+opened.ConversationID+`"}`, "")
		require.Equal(t, http.StatusOK, second.Code)

		conversations, err := driver.ListConversations(context.Background(), &store.FindConversation{})
		require.NoError(t, err)
		assert.Len(t, conversations, 1)
		require.Len(t, assistant.processed, 2)
		assert.Equal(t, assistant.processed[0], assistant.processed[1])
	})

	t.Run("unknown conversation id is 404", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/chat",
			`{"query": "merhaba", "conversation_id": "ghost"}`, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing query is 400", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/chat", `{"query": "  "}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query is required")
	})

	t.Run("markdown answer gets html", func(t *testing.T) {
		svc, assistant := newTestService(newFakeDriver())
		assistant.response.Answer = "**kapalıyız**"
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/api/v1/chat", `{"query": "açık mısınız"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp web.ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "**kapalıyız**", resp.Answer)
		assert.Contains(t, resp.AnswerHTML, "<strong>kapalıyız</strong>")
	})
}
