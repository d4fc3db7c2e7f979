// Package server exposes the bot over HTTP: the LINE webhook callback and
// a liveness endpoint.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linyuchia/speechbot/internal/bot/handlers"
	"github.com/linyuchia/speechbot/internal/line"
)

// maxWebhookBody bounds the webhook request body; LINE batches at most a
// few hundred events per delivery.
const maxWebhookBody = 1 << 20

// New builds the HTTP server hosting the webhook.
func New(addr, channelSecret string, eventHandlers map[string]handlers.HandlerFunc, log *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("LINE Bot is Running!"))
	})
	r.Post("/callback", NewCallbackHandler(channelSecret, eventHandlers, log))

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewCallbackHandler returns the webhook endpoint: it verifies the request
// signature against the raw body, parses the events, and dispatches each
// to its registered handler. Unknown event types are dropped.
func NewCallbackHandler(channelSecret string, eventHandlers map[string]handlers.HandlerFunc, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			log.ErrorContext(ctx, "Failed to read webhook body", "error", err)
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		signature := r.Header.Get("X-Line-Signature")
		if !line.ValidateSignature(channelSecret, signature, body) {
			log.WarnContext(ctx, "Webhook signature validation failed")
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}

		events, err := line.ParseWebhookBody(body)
		if err != nil {
			log.ErrorContext(ctx, "Failed to parse webhook body", "error", err)
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		for _, event := range events {
			handle, ok := eventHandlers[event.Type]
			if !ok {
				log.DebugContext(ctx, "No handler for event type", "event_type", event.Type)
				continue
			}
			handle(ctx, event)
		}

		_, _ = w.Write([]byte("OK"))
	}
}

// requestLogger logs one line per request with status and duration.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
