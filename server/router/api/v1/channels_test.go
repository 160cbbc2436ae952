package v1

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/plugin/chatapps/channels/whatsapp"
	"github.com/queryon/queryon/store"
)

func TestChannelWebhookIngress(t *testing.T) {
	t.Run("unregistered platform is 404", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/webhooks/telegram", `{}`, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "telegram channel not configured")
	})

	t.Run("bad signature is 401", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(&fakeChannel{
			platform:    store.PlatformTelegram,
			validateErr: chatapps.ErrInvalidSignature,
		})
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/webhooks/telegram", `{}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unparseable update is acked", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(&fakeChannel{
			platform: store.PlatformTelegram,
			parseErr: chatapps.ErrInvalidPayload,
		})
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/webhooks/telegram", `!!`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ignorable update is acked", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(&fakeChannel{platform: store.PlatformTelegram})
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/webhooks/telegram", `{"receipt": true}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("message update is acked", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(&fakeChannel{
			platform: store.PlatformTelegram,
			parsed: &chatapps.IncomingMessage{
				Platform: store.PlatformTelegram,
				ChatID:   "42",
				Text:     "merhaba",
			},
		})
		rec := doJSON(newTestEcho(svc), http.MethodPost, "/webhooks/telegram", `{}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestProcessChannelMessage(t *testing.T) {
	msg := &chatapps.IncomingMessage{
		Platform: store.PlatformTelegram,
		ChatID:   "42",
		Text:     "randevu istiyorum",
		Name:     "Ayşe",
	}

	t.Run("replies through the channel", func(t *testing.T) {
		driver := newFakeDriver()
		svc, assistant := newTestService(driver)
		channel := &fakeChannel{platform: store.PlatformTelegram}
		svc.channels.Register(channel)

		svc.processChannelMessage(msg)

		require.Len(t, assistant.processed, 1)
		sent := channel.sentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "42", sent[0].ChatID)
		assert.Equal(t, "ok", sent[0].Text)

		conversations, err := driver.ListConversations(context.Background(), &store.FindConversation{})
		require.NoError(t, err)
		require.Len(t, conversations, 1)
		assert.Equal(t, store.PlatformTelegram, conversations[0].Platform)
		require.NotNil(t, conversations[0].ChannelID)
		assert.Equal(t, "42", *conversations[0].ChannelID)
		require.NotNil(t, conversations[0].Name)
		assert.Equal(t, "Ayşe", *conversations[0].Name)
	})

	t.Run("reuses the active conversation", func(t *testing.T) {
		driver := newFakeDriver()
		svc, assistant := newTestService(driver)
		svc.channels.Register(&fakeChannel{platform: store.PlatformTelegram})

		svc.processChannelMessage(msg)
		svc.processChannelMessage(msg)

		conversations, err := driver.ListConversations(context.Background(), &store.FindConversation{})
		require.NoError(t, err)
		assert.Len(t, conversations, 1)
		require.Len(t, assistant.processed, 2)
		assert.Equal(t, assistant.processed[0], assistant.processed[1])
	})

	t.Run("silent turn sends nothing", func(t *testing.T) {
		svc, assistant := newTestService(newFakeDriver())
		assistant.response.Silent = true
		channel := &fakeChannel{platform: store.PlatformTelegram}
		svc.channels.Register(channel)

		svc.processChannelMessage(msg)

		assert.Empty(t, channel.sentMessages())
	})
}

func TestWhatsAppVerify(t *testing.T) {
	t.Run("handshake echoes the challenge", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(whatsapp.New(whatsapp.Config{
			AccessToken:   "token",
			PhoneNumberID: "1",
			VerifyToken:   "verify-me",
		}))
		rec := doJSON(newTestEcho(svc), http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", rec.Body.String())
	})

	t.Run("wrong token is 403", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		svc.channels.Register(whatsapp.New(whatsapp.Config{
			AccessToken:   "token",
			PhoneNumberID: "1",
			VerifyToken:   "verify-me",
		}))
		rec := doJSON(newTestEcho(svc), http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("not configured is 404", func(t *testing.T) {
		svc, _ := newTestService(newFakeDriver())
		rec := doJSON(newTestEcho(svc), http.MethodGet, "/webhooks/whatsapp", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestChannelMetricsEndpoint(t *testing.T) {
	svc, _ := newTestService(newFakeDriver())
	e := newTestEcho(svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "merhaba"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := doJSON(e, http.MethodGet, "/api/v1/channels/metrics", "", testAdminKey)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "web")
}
