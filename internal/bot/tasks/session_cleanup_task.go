package tasks

import "context"

// newSessionCleanupTask creates the scheduled task that evicts sessions
// idle past the configured TTL. Abandoned conversations would otherwise
// accumulate in memory for the life of the process.
func newSessionCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_cleanup")

	return func(ctx context.Context) error {
		ttl := deps.Config.Session.IdleTTL
		evicted := deps.Sessions.SweepIdle(ttl)

		if evicted > 0 {
			log.InfoContext(ctx, "Evicted idle sessions", "count", evicted, "idle_ttl", ttl)
		} else {
			log.DebugContext(ctx, "No idle sessions to evict", "idle_ttl", ttl)
		}
		return nil
	}
}
