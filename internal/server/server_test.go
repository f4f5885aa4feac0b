// ABOUTME: Tests for the HTTP boundary: handshake, webhook decoding, acks
// ABOUTME: Uses a recording fake router behind the real route table

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/support-bridge/internal/bridge"
	"github.com/2389/support-bridge/internal/config"
	"github.com/2389/support-bridge/internal/store"
)

type fakeRouter struct {
	channelEvents []bridge.ChannelEvent
	chatEvents    []bridge.ChatEvent
	sweeps        int
	conversations []store.Conversation
	channelErr    error
}

func (f *fakeRouter) HandleChannelEvent(ctx context.Context, ev bridge.ChannelEvent) error {
	f.channelEvents = append(f.channelEvents, ev)
	return f.channelErr
}

func (f *fakeRouter) HandleChatEvent(ctx context.Context, ev bridge.ChatEvent) error {
	f.chatEvents = append(f.chatEvents, ev)
	return nil
}

func (f *fakeRouter) SweepExpired(ctx context.Context) {
	f.sweeps++
}

func (f *fakeRouter) Conversations() []store.Conversation {
	return f.conversations
}

func newTestServer(t *testing.T) (*Server, *fakeRouter) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Channel.VerifyToken = "open-sesame"
	cfg.Chat.BotEmail = "support-bot@example.com"

	router := &fakeRouter{}
	return newServer(cfg, router, slog.New(slog.NewTextHandler(io.Discard, nil))), router
}

func TestVerifyHandshake(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=open-sesame&hub.challenge=12345", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyHandshake_BadToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

const channelTextBody = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"id": "wamid.1", "from": "15551234567", "type": "text", "text": {"body": "hello"}}
  ]}}]}]
}`

func TestChannelWebhook_DecodesText(t *testing.T) {
	srv, router := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(channelTextBody))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, router.channelEvents, 1)
	ev := router.channelEvents[0]
	assert.Equal(t, "wamid.1", ev.MessageID)
	assert.Equal(t, "15551234567", ev.Contact)
	assert.Equal(t, bridge.ChannelEventText, ev.Type)
	assert.Equal(t, "hello", ev.Text)

	// Each webhook triggers a sweep pass first
	assert.Equal(t, 1, router.sweeps)
}

func TestChannelWebhook_DecodesMedia(t *testing.T) {
	srv, router := newTestServer(t)

	body := `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"id": "wamid.2", "from": "15551234567", "type": "image",
	     "image": {"id": "media-9", "mime_type": "image/png", "caption": "the tray"}},
	    {"id": "wamid.3", "from": "15551234567", "type": "document",
	     "document": {"id": "media-10", "filename": "trace.log", "caption": ""}}
	  ]}}]}]
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	require.Len(t, router.channelEvents, 2)

	img := router.channelEvents[0]
	assert.Equal(t, bridge.ChannelEventImage, img.Type)
	assert.Equal(t, "media-9", img.MediaID)
	assert.Equal(t, "the tray", img.Caption)
	assert.True(t, strings.HasPrefix(img.Filename, "image."))

	doc := router.channelEvents[1]
	assert.Equal(t, bridge.ChannelEventDocument, doc.Type)
	assert.Equal(t, "trace.log", doc.Filename)
}

func TestChannelWebhook_UnsupportedTypeSkipped(t *testing.T) {
	srv, router := newTestServer(t)

	body := `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"id": "wamid.4", "from": "15551234567", "type": "sticker"}
	  ]}}]}]
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.channelEvents)
}

func TestChannelWebhook_RoutingFailureStillAcked(t *testing.T) {
	srv, router := newTestServer(t)
	router.channelErr = errors.New("collaborator down")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(channelTextBody))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChannelWebhook_MalformedBodyAcked(t *testing.T) {
	srv, router := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.channelEvents)
}

func TestChatWebhook_DecodesMessage(t *testing.T) {
	srv, router := newTestServer(t)

	body := `{"message": {"id": 77, "type": "stream", "subject": "15551234567 | Printer broken",
	  "sender_email": "eng@example.com", "content": "try rebooting"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/zulip", strings.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, router.chatEvents, 1)
	ev := router.chatEvents[0]
	assert.Equal(t, "77", ev.MessageID)
	assert.Equal(t, "15551234567 | Printer broken", ev.Topic)
	assert.Equal(t, "try rebooting", ev.Content)

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, true, ack["response_not_required"])
}

func TestChatWebhook_BotEchoDropped(t *testing.T) {
	srv, router := newTestServer(t)

	body := `{"message": {"id": 78, "type": "stream", "subject": "15551234567 | Printer broken",
	  "sender_email": "support-bot@example.com", "content": "forwarded text"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/zulip", strings.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.chatEvents)
}

func TestChatWebhook_PrivateMessageDropped(t *testing.T) {
	srv, router := newTestServer(t)

	body := `{"message": {"id": 79, "type": "private",
	  "sender_email": "eng@example.com", "content": "psst"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/zulip", strings.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.chatEvents)
}

func TestHealth(t *testing.T) {
	srv, router := newTestServer(t)
	router.conversations = []store.Conversation{{Contact: "15551234567"}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["open_conversations"])
}
