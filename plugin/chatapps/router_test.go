package chatapps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

type fakeChannel struct {
	platform    store.Platform
	validateErr error
	parseErr    error
	parsed      *IncomingMessage
	sendErr     error
	sent        []*OutgoingMessage
	closed      bool
}

func (f *fakeChannel) Name() store.Platform { return f.platform }

func (f *fakeChannel) ValidateWebhook(context.Context, map[string]string, []byte) error {
	return f.validateErr
}

func (f *fakeChannel) ParseMessage(context.Context, []byte) (*IncomingMessage, error) {
	return f.parsed, f.parseErr
}

func (f *fakeChannel) SendMessage(_ context.Context, msg *OutgoingMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestHandleWebhook_RoutesToChannel(t *testing.T) {
	ch := &fakeChannel{
		platform: store.PlatformTelegram,
		parsed:   &IncomingMessage{Platform: store.PlatformTelegram, ChatID: "42", Text: "merhaba"},
	}
	router := NewChannelRouter()
	router.Register(ch)

	msg, err := router.HandleWebhook(context.Background(), store.PlatformTelegram, nil, []byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "42", msg.ChatID)

	snap := router.Metrics().Get(store.PlatformTelegram)
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.Received)
	assert.EqualValues(t, 1, snap.Validated)
	assert.InDelta(t, 100.0, snap.SuccessRate(), 0.01)
	assert.True(t, snap.IsHealthy())
}

func TestHandleWebhook_UnknownPlatform(t *testing.T) {
	router := NewChannelRouter()

	_, err := router.HandleWebhook(context.Background(), store.PlatformWhatsApp, nil, nil)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestHandleWebhook_SignatureRejectionSkipsValidated(t *testing.T) {
	ch := &fakeChannel{platform: store.PlatformWhatsApp, validateErr: ErrInvalidSignature}
	router := NewChannelRouter()
	router.Register(ch)

	_, err := router.HandleWebhook(context.Background(), store.PlatformWhatsApp, nil, []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	snap := router.Metrics().Get(store.PlatformWhatsApp)
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.Received)
	assert.EqualValues(t, 0, snap.Validated)
	assert.InDelta(t, 0.0, snap.SuccessRate(), 0.01)
}

func TestHandleWebhook_ParseErrorRecorded(t *testing.T) {
	ch := &fakeChannel{platform: store.PlatformTelegram, parseErr: ErrInvalidPayload}
	router := NewChannelRouter()
	router.Register(ch)

	_, err := router.HandleWebhook(context.Background(), store.PlatformTelegram, nil, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	snap := router.Metrics().Get(store.PlatformTelegram)
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.ParseErrors)
	require.Len(t, snap.RecentErrors, 1)
	assert.Equal(t, EventWebhookParseError, snap.RecentErrors[0].Event)
}

func TestHandleWebhook_IgnorableUpdate(t *testing.T) {
	ch := &fakeChannel{platform: store.PlatformTelegram}
	router := NewChannelRouter()
	router.Register(ch)

	msg, err := router.HandleWebhook(context.Background(), store.PlatformTelegram, nil, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestSendResponse_CountsOutcomes(t *testing.T) {
	ch := &fakeChannel{platform: store.PlatformTelegram}
	router := NewChannelRouter()
	router.Register(ch)
	ctx := context.Background()

	require.NoError(t, router.SendResponse(ctx, store.PlatformTelegram, &OutgoingMessage{ChatID: "42", Text: "tamam"}))
	require.Len(t, ch.sent, 1)

	ch.sendErr = assert.AnError
	require.Error(t, router.SendResponse(ctx, store.PlatformTelegram, &OutgoingMessage{ChatID: "42", Text: "tekrar"}))

	snap := router.Metrics().Get(store.PlatformTelegram)
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.ResponsesSent)
	assert.EqualValues(t, 1, snap.ResponseErrors)
	assert.False(t, snap.LastError.IsZero())
}

func TestRecordProcessed_TracksAverage(t *testing.T) {
	router := NewChannelRouter()
	router.RecordProcessed(store.PlatformWeb, 100*time.Millisecond)
	router.RecordProcessed(store.PlatformWeb, 300*time.Millisecond)

	snap := router.Metrics().Get(store.PlatformWeb)
	require.NotNil(t, snap)
	assert.EqualValues(t, 2, snap.Processed)
	assert.EqualValues(t, 200, snap.AvgProcessMs)
}

func TestClose_ClosesEveryChannel(t *testing.T) {
	a := &fakeChannel{platform: store.PlatformTelegram}
	b := &fakeChannel{platform: store.PlatformWhatsApp}
	router := NewChannelRouter()
	router.Register(a)
	router.Register(b)

	require.NoError(t, router.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
