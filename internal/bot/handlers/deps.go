package handlers

import (
	"context"
	"log/slog"

	"github.com/linyuchia/speechbot/internal/config"
)

// Conversation is the engine surface the handlers drive: one reply per
// text message, a welcome for first contact.
type Conversation interface {
	HandleText(ctx context.Context, userID, text string) (string, error)
	HandleFollow(ctx context.Context, userID string) string
}

// Replier sends a single text reply for a webhook event's reply token.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

// HandlerDeps provides dependencies for webhook event handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Engine  Conversation
	Replier Replier
}
