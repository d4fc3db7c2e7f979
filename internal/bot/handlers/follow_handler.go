package handlers

import (
	"context"

	"github.com/linyuchia/speechbot/internal/line"
)

// NewFollowHandler returns a handler for follow (first contact) events.
func NewFollowHandler(deps HandlerDeps) HandlerFunc {
	return followHandler{deps}.Handle
}

type followHandler struct {
	deps HandlerDeps
}

func (h followHandler) Handle(ctx context.Context, event line.Event) {
	log := h.deps.Logger.With("handler", "follow")

	if event.Source.UserID == "" {
		log.WarnContext(ctx, "Follow event without user id")
		return
	}

	log.InfoContext(ctx, "Handling follow event", "user_id", event.Source.UserID)

	welcome := h.deps.Engine.HandleFollow(ctx, event.Source.UserID)
	if err := h.deps.Replier.ReplyText(ctx, event.ReplyToken, welcome); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "user_id", event.Source.UserID)
	}
}
