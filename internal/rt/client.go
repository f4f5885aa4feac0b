// ABOUTME: RT REST2 ticketing client: creates tickets and posts transcript comments
// ABOUTME: Comment submission retries once with a raw text/html body on failure

package rt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/support-bridge/internal/config"
)

const defaultTimeout = 15 * time.Second

// Client talks to an RT server over the REST2 API using token auth.
type Client struct {
	baseURL string
	token   string
	queue   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client from ticketing configuration.
func New(cfg config.TicketingConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "General"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		queue:   queue,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("component", "rt"),
	}
}

// CreateTicket opens a new ticket in the configured queue and returns its ID.
func (c *Client) CreateTicket(ctx context.Context, subject, requestor, description string) (int, error) {
	payload := map[string]string{
		"Subject":   subject,
		"Queue":     c.queue,
		"Requestor": requestor,
		"Text":      description,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ticket", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ticket create: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("ticket create: status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("decoding ticket create response: %w", err)
	}
	c.logger.Info("ticket created", "ticket", result.ID, "subject", subject)
	return result.ID, nil
}

// PostComment attaches an HTML document as a comment on the ticket. The JSON
// envelope with an embedded ContentType is tried first; some RT setups only
// accept the document as a raw text/html body, so that is the one retry.
func (c *Client) PostComment(ctx context.Context, ticketID int, htmlBody string) error {
	url := fmt.Sprintf("%s/ticket/%d/comment", c.baseURL, ticketID)

	if err := c.postCommentJSON(ctx, url, htmlBody); err == nil {
		return nil
	} else {
		c.logger.Debug("json comment submit failed, retrying as raw html", "ticket", ticketID, "error", err)
	}

	return c.postCommentRaw(ctx, url, htmlBody)
}

func (c *Client) postCommentJSON(ctx context.Context, url, htmlBody string) error {
	data, err := json.Marshal(map[string]string{
		"ContentType": "text/html",
		"Content":     htmlBody,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.doExpectCreated(req)
}

func (c *Client) postCommentRaw(ctx context.Context, url, htmlBody string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(htmlBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "text/html")
	return c.doExpectCreated(req)
}

func (c *Client) doExpectCreated(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("comment submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("comment submit: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
