package tasks

import (
	"log/slog"
	"time"

	"github.com/linyuchia/speechbot/internal/config"
	"github.com/linyuchia/speechbot/internal/database"
)

// SessionSweeper evicts idle sessions; implemented by the session store.
type SessionSweeper interface {
	SweepIdle(ttl time.Duration) int
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Sessions SessionSweeper
	Config   *config.Config
}
