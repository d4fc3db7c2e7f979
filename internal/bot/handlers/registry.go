// Package handlers contains the webhook event handlers and their
// registration logic.
package handlers

import (
	"context"

	"github.com/linyuchia/speechbot/internal/line"
)

// HandlerFunc processes one webhook event.
type HandlerFunc func(ctx context.Context, event line.Event)

// RegisterAllHandlers returns the event-type dispatch table. Each event
// type is registered exactly once; unknown event types have no entry and
// are dropped by the dispatcher.
func RegisterAllHandlers(deps HandlerDeps) map[string]HandlerFunc {
	handlers := make(map[string]HandlerFunc)

	handlers[line.EventTypeMessage] = NewMessageHandler(deps)
	handlers[line.EventTypeFollow] = NewFollowHandler(deps)

	return handlers
}
