// ABOUTME: In-package mocks and helpers for bridge tests
// ABOUTME: Recording fakes for the channel, chat, and ticketing collaborators

package bridge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/support-bridge/internal/store"
)

type sentText struct {
	contact, text string
}

type sentMedia struct {
	contact, path, caption string
}

type mockChannel struct {
	mu          sync.Mutex
	texts       []sentText
	media       []sentMedia
	markedRead  []string
	fetchPath   string // file returned by FetchMedia; recreated per call
	deliveredAs string
	textErr     error
	mediaErr    error
	fetchErr    error
}

func (m *mockChannel) SendText(ctx context.Context, contact, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return m.textErr
	}
	m.texts = append(m.texts, sentText{contact, text})
	return nil
}

func (m *mockChannel) SendMedia(ctx context.Context, contact, localPath, caption string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mediaErr != nil {
		return "", m.mediaErr
	}
	m.media = append(m.media, sentMedia{contact, localPath, caption})
	if m.deliveredAs == "" {
		return "application/octet-stream", nil
	}
	return m.deliveredAs, nil
}

func (m *mockChannel) FetchMedia(ctx context.Context, mediaID, filename string) (string, error) {
	if m.fetchErr != nil {
		return "", m.fetchErr
	}
	// The bridge deletes the file after relaying, so write a fresh one
	if err := os.WriteFile(m.fetchPath, []byte("media"), 0600); err != nil {
		return "", err
	}
	return m.fetchPath, nil
}

func (m *mockChannel) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedRead = append(m.markedRead, messageID)
	return nil
}

func (m *mockChannel) sentTexts() []sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentText(nil), m.texts...)
}

type topicPost struct {
	topic, content string
}

type mockChat struct {
	mu           sync.Mutex
	posts        []topicPost
	uploadURI    string
	downloadPath string // file returned by DownloadFile; recreated per call
	postErr      error
	uploadErr    error
	downloadErr  error
}

func (m *mockChat) PostToTopic(ctx context.Context, topic, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	m.posts = append(m.posts, topicPost{topic, content})
	return nil
}

func (m *mockChat) UploadFile(ctx context.Context, localPath string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	return m.uploadURI, nil
}

func (m *mockChat) DownloadFile(ctx context.Context, uri string) (string, error) {
	if m.downloadErr != nil {
		return "", m.downloadErr
	}
	if err := os.WriteFile(m.downloadPath, []byte("upload"), 0600); err != nil {
		return "", err
	}
	return m.downloadPath, nil
}

func (m *mockChat) topicPosts() []topicPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]topicPost(nil), m.posts...)
}

type createdTicket struct {
	subject, requestor, description string
}

type postedComment struct {
	ticketID int
	html     string
}

type mockTicketing struct {
	mu         sync.Mutex
	nextID     int
	created    []createdTicket
	comments   []postedComment
	createErr  error
	commentErr error
}

func (m *mockTicketing) CreateTicket(ctx context.Context, subject, requestor, description string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.created = append(m.created, createdTicket{subject, requestor, description})
	if m.nextID == 0 {
		m.nextID = 100
	}
	return m.nextID, nil
}

func (m *mockTicketing) PostComment(ctx context.Context, ticketID int, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commentErr != nil {
		return m.commentErr
	}
	m.comments = append(m.comments, postedComment{ticketID, html})
	return nil
}

func (m *mockTicketing) postedComments() []postedComment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedComment(nil), m.comments...)
}

// testClock is a controllable clock for lifecycle tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testBridge struct {
	bridge    *Bridge
	store     *store.Store
	channel   *mockChannel
	chat      *mockChat
	ticketing *mockTicketing
	clock     *testClock
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "state.json"), nil)
	require.NoError(t, err)

	channel := &mockChannel{fetchPath: filepath.Join(dir, "fetched.bin")}
	chat := &mockChat{
		uploadURI:    "/user_uploads/1/ab/upload.png",
		downloadPath: filepath.Join(dir, "downloaded.bin"),
	}
	ticketing := &mockTicketing{nextID: 42}
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	b := New(Config{
		Store:       s,
		Channel:     channel,
		Chat:        chat,
		Ticketing:   ticketing,
		ChatBaseURL: "https://chat.example.com",
		IdleTTL:     4 * time.Hour,
		Now:         clock.Now,
	})
	t.Cleanup(b.Close)

	return &testBridge{
		bridge:    b,
		store:     s,
		channel:   channel,
		chat:      chat,
		ticketing: ticketing,
		clock:     clock,
	}
}

// textEvent builds an inbound channel text event with a unique message ID.
func textEvent(contact, text string) ChannelEvent {
	return ChannelEvent{
		MessageID: "wamid." + contact + "." + text,
		Contact:   contact,
		Type:      ChannelEventText,
		Text:      text,
	}
}
