package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

func seedConversation(t *testing.T, driver *fakeDriver, uid string, platform store.Platform, status store.ConversationStatus) *store.Conversation {
	t.Helper()
	conversation, err := driver.CreateConversation(context.Background(), &store.Conversation{
		UID:      uid,
		Platform: platform,
		Status:   status,
	})
	require.NoError(t, err)
	return conversation
}

func TestListConversations(t *testing.T) {
	driver := newFakeDriver()
	seedConversation(t, driver, "web-1", store.PlatformWeb, store.ConversationActive)
	seedConversation(t, driver, "tg-1", store.PlatformTelegram, store.ConversationActive)
	seedConversation(t, driver, "tg-2", store.PlatformTelegram, store.ConversationClosed)
	svc, _ := newTestService(driver)
	e := newTestEcho(svc)

	t.Run("unfiltered returns all", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations", "", testAdminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []*ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 3)
	})

	t.Run("platform filter", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations?filter="+
			"platform%20%3D%3D%20%27telegram%27", "", testAdminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []*ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 2)
	})

	t.Run("conjunction filter", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations?filter="+
			"platform%20%3D%3D%20%27telegram%27%20%26%26%20status%20%3D%3D%20%27closed%27", "", testAdminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []*ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "tg-2", out[0].UID)
	})

	t.Run("bad filter is 400", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations?filter=platform%20%3E%201", "", testAdminKey)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetConversation(t *testing.T) {
	driver := newFakeDriver()
	seeded := seedConversation(t, driver, "web-abc", store.PlatformWeb, store.ConversationActive)
	svc, _ := newTestService(driver)
	e := newTestEcho(svc)

	t.Run("by uid", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations/web-abc", "", testAdminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		var out ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, seeded.ID, out.ID)
		assert.Equal(t, "web-abc", out.UID)
	})

	t.Run("by numeric id", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations/1", "", testAdminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		var out ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "web-abc", out.UID)
	})

	t.Run("unknown ref is 404", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/v1/conversations/ghost", "", testAdminKey)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCloseConversation(t *testing.T) {
	driver := newFakeDriver()
	seedConversation(t, driver, "web-abc", store.PlatformWeb, store.ConversationActive)
	svc, _ := newTestService(driver)
	e := newTestEcho(svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/conversations/web-abc/close", "", testAdminKey)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := driver.ListConversations(context.Background(), &store.FindConversation{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, store.ConversationClosed, stored[0].Status)

	missing := doJSON(e, http.MethodPost, "/api/v1/conversations/ghost/close", "", testAdminKey)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestListConversationMessages(t *testing.T) {
	driver := newFakeDriver()
	conversation := seedConversation(t, driver, "web-abc", store.PlatformWeb, store.ConversationActive)

	ctx := context.Background()
	message, err := driver.CreateMessage(ctx, &store.Message{
		ConversationID: conversation.ID,
		Role:           store.RoleUser,
		Content:        "fiyat nedir",
	})
	require.NoError(t, err)
	require.NoError(t, driver.CreateMessageEvents(ctx, []*store.MessageEvent{
		{MessageID: message.ID, EventType: store.EventClassificationResult, Data: store.JSONMap{"intent": "faq"}},
	}))

	svc, _ := newTestService(driver)
	rec := doJSON(newTestEcho(svc), http.MethodGet, "/api/v1/conversations/web-abc/messages", "", testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []*MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "fiyat nedir", out[0].Content)
	require.Len(t, out[0].Events, 1)
	assert.Equal(t, "classification_result", out[0].Events[0].EventType)
}
