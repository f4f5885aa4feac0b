// ABOUTME: Zulip client for the group-chat side of the bridge
// ABOUTME: Posts to stream topics and direct messages, uploads and downloads files

package zulip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/support-bridge/internal/config"
)

const defaultTimeout = 10 * time.Second

// Client talks to a Zulip server as the bridge bot.
type Client struct {
	baseURL  string
	botEmail string
	apiKey   string
	stream   string
	http     *http.Client
	tmpDir   string
	logger   *slog.Logger
}

// New creates a Client from chat configuration.
func New(cfg config.ChatConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		botEmail: cfg.BotEmail,
		apiKey:   cfg.APIKey,
		stream:   cfg.Stream,
		http:     &http.Client{Timeout: defaultTimeout},
		tmpDir:   os.TempDir(),
		logger:   logger.With("component", "zulip"),
	}
}

// BaseURL returns the server root, used to resolve relative upload links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostToTopic sends a message to the configured support stream under topic.
func (c *Client) PostToTopic(ctx context.Context, topic, content string) error {
	form := url.Values{
		"type":    {"stream"},
		"to":      {c.stream},
		"topic":   {topic},
		"content": {content},
	}
	return c.postForm(ctx, "/api/v1/messages", form)
}

// PostDirect sends a private message to the given recipients.
func (c *Client) PostDirect(ctx context.Context, recipients []string, content string) error {
	form := url.Values{
		"type":    {"private"},
		"to":      {strings.Join(recipients, ",")},
		"content": {content},
	}
	return c.postForm(ctx, "/api/v1/messages", form)
}

// UploadFile stores a local file on the server and returns its upload URI
// (relative, suitable for embedding in message content).
func (c *Client) UploadFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/user_uploads", &body)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.botEmail, c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload: status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		URI string `json:"uri"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	// Newer servers return "url" instead of "uri"
	if result.URI == "" {
		result.URI = result.URL
	}
	return result.URI, nil
}

// DownloadFile fetches an upload by its URI (relative or absolute) into a
// unique temp file. The caller owns the returned file.
func (c *Client) DownloadFile(ctx context.Context, uri string) (string, error) {
	full := uri
	if strings.HasPrefix(uri, "/") {
		full = c.baseURL + uri
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.botEmail, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	name := filepath.Base(uri)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	localPath := filepath.Join(c.tmpDir, uuid.New().String()+"_"+name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("writing download file: %w", err)
	}
	return localPath, nil
}

// postForm submits a form-encoded request with bot credentials.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.botEmail, c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat request: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
