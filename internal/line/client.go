package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const replyEndpoint = "/v2/bot/message/reply"

// Client sends replies through the LINE Messaging API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	channelToken string
	log          *slog.Logger
}

// NewClient creates a LINE API client for the given channel.
func NewClient(baseURL, channelToken string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      baseURL,
		channelToken: channelToken,
		log:          log.With("component", "line_client"),
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// ReplyText sends exactly one text message in response to a webhook
// event's reply token. Reply tokens are single-use; a second reply for the
// same token is rejected by the platform, which matches the one-reply-per-
// turn contract.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	payload, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: MessageTypeText, Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+replyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.WarnContext(ctx, "Error closing reply response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reply request returned status %d: %s", resp.StatusCode, string(body))
	}

	c.log.DebugContext(ctx, "Reply sent", "text_len", len(text))
	return nil
}
