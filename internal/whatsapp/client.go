// ABOUTME: WhatsApp Cloud API client for the channel side of the bridge
// ABOUTME: Sends text and media, fetches inbound media, marks messages read

package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/support-bridge/internal/config"
)

const defaultTimeout = 10 * time.Second

// Client talks to the WhatsApp Cloud API (graph endpoint) for one business
// phone number.
type Client struct {
	apiURL        string
	phoneNumberID string
	token         string
	http          *http.Client
	tmpDir        string
	logger        *slog.Logger
}

// New creates a Client from channel configuration.
func New(cfg config.ChannelConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		http:          &http.Client{Timeout: defaultTimeout},
		tmpDir:        os.TempDir(),
		logger:        logger.With("component", "whatsapp"),
	}
}

// SendText delivers a plain text message to a contact.
func (c *Client) SendText(ctx context.Context, contact, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(contact, "+"),
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return c.postJSON(ctx, c.messagesURL(), payload, nil)
}

// SendMedia uploads a local file and delivers it to the contact as an image
// or document depending on the detected media type. If the API rejects the
// type, the file is retried as text/plain. Returns the media type the file
// was delivered as.
func (c *Client) SendMedia(ctx context.Context, contact, localPath, caption string) (string, error) {
	mediaType := mime.TypeByExtension(filepath.Ext(localPath))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	mediaID, err := c.uploadMedia(ctx, localPath, mediaType)
	if err != nil {
		if !isUnsupportedType(err) {
			return "", err
		}
		// Plain-text fallback: rename so the filename matches the type
		c.logger.Debug("media type rejected, retrying as text/plain", "type", mediaType)
		mediaType = "text/plain"
		if !strings.HasSuffix(localPath, ".txt") {
			renamed := localPath + ".txt"
			if renameErr := os.Rename(localPath, renamed); renameErr != nil {
				return "", fmt.Errorf("renaming for text fallback: %w", renameErr)
			}
			localPath = renamed
		}
		mediaID, err = c.uploadMedia(ctx, localPath, mediaType)
		if err != nil {
			return "", err
		}
	}

	filename := filepath.Base(localPath)
	var payload map[string]any
	if strings.HasPrefix(mediaType, "image/") {
		payload = map[string]any{
			"messaging_product": "whatsapp",
			"to":                strings.TrimPrefix(contact, "+"),
			"type":              "image",
			"image":             map[string]string{"id": mediaID, "caption": caption},
		}
	} else {
		payload = map[string]any{
			"messaging_product": "whatsapp",
			"to":                strings.TrimPrefix(contact, "+"),
			"type":              "document",
			"document":          map[string]string{"id": mediaID, "caption": caption, "filename": filename},
		}
	}
	if err := c.postJSON(ctx, c.messagesURL(), payload, nil); err != nil {
		return "", err
	}
	return mediaType, nil
}

// FetchMedia looks up an inbound media ID, downloads the content with the
// bearer token, and stores it under a unique temp filename. The caller owns
// the returned file.
func (c *Client) FetchMedia(ctx context.Context, mediaID, filename string) (string, error) {
	// Media metadata lookup returns a short-lived download URL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/"+mediaID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media lookup: %w", err)
	}
	defer resp.Body.Close()

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decoding media lookup: %w", err)
	}
	if meta.URL == "" {
		return "", fmt.Errorf("media %s has no download url", mediaID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return "", err
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.token)

	dlResp, err := c.http.Do(dlReq)
	if err != nil {
		return "", fmt.Errorf("media download: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download: status %d", dlResp.StatusCode)
	}

	if filename == "" {
		filename = "media.jpg"
	}
	localPath := filepath.Join(c.tmpDir, uuid.New().String()+"_"+filepath.Base(filename))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("creating media file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, dlResp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("writing media file: %w", err)
	}
	return localPath, nil
}

// MarkRead acknowledges an inbound message so the customer sees read receipts.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return c.postJSON(ctx, c.messagesURL(), payload, nil)
}

// uploadMedia posts a file to the media endpoint and returns its media ID.
func (c *Client) uploadMedia(ctx context.Context, localPath, mediaType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening media: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading media: %w", err)
	}
	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := w.WriteField("type", mediaType); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/"+c.phoneNumberID+"/media", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &apiError{status: resp.StatusCode, body: string(respBody)}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	return result.ID, nil
}

// postJSON posts a JSON payload, optionally decoding the response into out.
func (c *Client) postJSON(ctx context.Context, url string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("channel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{status: resp.StatusCode, body: string(body)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) messagesURL() string {
	return c.apiURL + "/" + c.phoneNumberID + "/messages"
}

// apiError carries the upstream status and body for fallback decisions.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d: %s", e.status, e.body)
}

// isUnsupportedType reports whether the API rejected an upload for its MIME
// type, which is the trigger for the text/plain fallback.
func isUnsupportedType(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return false
	}
	return strings.Contains(ae.body, "Param file must be a file with one of the following types")
}
