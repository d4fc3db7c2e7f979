// Package line implements the LINE Messaging API surface the bot needs:
// webhook event parsing, request signature verification, and the reply
// endpoint client.
package line

import (
	"encoding/json"
	"fmt"
)

// Event types delivered by the LINE webhook that the bot handles. Other
// event types are ignored.
const (
	EventTypeMessage = "message"
	EventTypeFollow  = "follow"
)

// MessageTypeText is the only message type the bot responds to.
const MessageTypeText = "text"

// Event is one webhook event: a message, a follow, or something the bot
// ignores.
type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken"`
	Source     Source   `json:"source"`
	Message    *Message `json:"message,omitempty"`
}

// Source identifies who triggered an event.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// webhookBody is the top-level webhook request payload.
type webhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// ParseWebhookBody decodes a webhook request body into its events. The
// caller must have verified the signature against the same raw bytes
// first.
func ParseWebhookBody(body []byte) ([]Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	return wb.Events, nil
}
