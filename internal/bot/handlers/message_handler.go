package handlers

import (
	"context"

	"github.com/linyuchia/speechbot/internal/line"
)

// NewMessageHandler returns a handler for text message events. Engine
// failures (an unavailable evaluator mid-screening) become the configured
// generic-error reply, so every inbound message still gets exactly one
// response.
func NewMessageHandler(deps HandlerDeps) HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, event line.Event) {
	log := h.deps.Logger.With("handler", "message")

	if event.Message == nil || event.Message.Type != line.MessageTypeText {
		log.DebugContext(ctx, "Ignoring non-text message event")
		return
	}
	if event.Source.UserID == "" {
		log.WarnContext(ctx, "Message event without user id")
		return
	}

	userID := event.Source.UserID
	reply, err := h.deps.Engine.HandleText(ctx, userID, event.Message.Text)
	if err != nil {
		log.ErrorContext(ctx, "Turn aborted", "error", err, "user_id", userID)
		reply = h.deps.Config.Messages.GeneralError
	}

	if err := h.deps.Replier.ReplyText(ctx, event.ReplyToken, reply); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "user_id", userID)
	}
}
