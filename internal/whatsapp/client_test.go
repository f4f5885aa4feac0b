// ABOUTME: Tests for the WhatsApp Cloud API client against a stub server
// ABOUTME: Covers text sends, read receipts, media fetch, and the text/plain fallback

package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/support-bridge/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.ChannelConfig{
		APIURL:        srv.URL,
		PhoneNumberID: "12345",
		AccessToken:   "wa-token",
	}, nil)
	c.tmpDir = t.TempDir()
	return c
}

func TestSendText(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/12345/messages", r.URL.Path)
		require.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))

	require.NoError(t, c.SendText(context.Background(), "+15551234", "hello"))
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "15551234", got["to"], "leading + stripped")
	assert.Equal(t, "text", got["type"])
}

func TestSendText_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	err := c.SendText(context.Background(), "+15551234", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestMarkRead(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))

	require.NoError(t, c.MarkRead(context.Background(), "wamid.xyz"))
	assert.Equal(t, "read", got["status"])
	assert.Equal(t, "wamid.xyz", got["message_id"])
}

func TestFetchMedia(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/media-id-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"url": %q}`, base+"/download/blob")
	})
	mux.HandleFunc("/download/blob", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("image bytes"))
	})
	c := newTestClient(t, mux)
	base = c.apiURL

	path, err := c.FetchMedia(context.Background(), "media-id-1", "photo.jpg")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
	assert.Contains(t, filepath.Base(path), "photo.jpg")
}

func TestSendMedia_ImagePayload(t *testing.T) {
	var messagePayload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/12345/media", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "media-77"}`))
	})
	mux.HandleFunc("/12345/messages", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&messagePayload))
	})
	c := newTestClient(t, mux)

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0600))

	deliveredAs, err := c.SendMedia(context.Background(), "+1555", path, "a screenshot")
	require.NoError(t, err)
	assert.Equal(t, "image/png", deliveredAs)
	assert.Equal(t, "image", messagePayload["type"])
}

func TestSendMedia_TextPlainFallback(t *testing.T) {
	var uploadedTypes []string
	var messagePayload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/12345/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		mediaType := r.PostFormValue("type")
		uploadedTypes = append(uploadedTypes, mediaType)
		if mediaType != "text/plain" {
			http.Error(w, "Param file must be a file with one of the following types", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id": "media-88"}`))
	})
	mux.HandleFunc("/12345/messages", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&messagePayload))
	})
	c := newTestClient(t, mux)

	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(path, []byte("log line"), 0600))

	deliveredAs, err := c.SendMedia(context.Background(), "+1555", path, "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", deliveredAs)
	assert.Len(t, uploadedTypes, 2)
	assert.Equal(t, "document", messagePayload["type"])

	doc, ok := messagePayload["document"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trace.log.txt", doc["filename"])
}
