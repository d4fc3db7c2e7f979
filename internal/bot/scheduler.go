package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/linyuchia/speechbot/internal/bot/tasks"
	"github.com/linyuchia/speechbot/internal/config"
)

// Scheduler runs the configured background tasks on cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler over the given task registry. Tasks are
// not scheduled until Start is called.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers every enabled task from the configuration and starts the
// scheduler ticking. Misconfigured entries are logged and skipped so one bad
// task cannot block the rest.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	count := 0
	if s.cfg != nil {
		for name, tc := range s.cfg.Tasks {
			if err := s.addJob(name, tc); err != nil {
				s.logger.Warn("Skipping scheduled task", "task_name", name, "reason", err)
				continue
			}
			s.logger.Info("Scheduled task", "task_name", name, "schedule", tc.Schedule)
			count++
		}
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", count)

	return nil
}

func (s *Scheduler) addJob(name string, tc config.TaskConfig) error {
	if !tc.Enabled {
		return fmt.Errorf("task is disabled")
	}
	taskFunc, ok := s.taskMap[name]
	if !ok {
		return fmt.Errorf("task is not in the registry")
	}
	if tc.Schedule == "" {
		return fmt.Errorf("task has an empty schedule")
	}

	// The true flag enables the optional seconds field in cron expressions.
	_, err := s.scheduler.NewJob(
		gocron.CronJob(tc.Schedule, true),
		gocron.NewTask(s.runTask, context.Background(), name, taskFunc),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule: %w", err)
	}
	return nil
}

// runTask wraps a registered task with logging and timing.
func (s *Scheduler) runTask(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) {
	s.logger.Info("Running scheduled task", "task_name", name)
	start := time.Now()

	if err := taskFunc(ctx); err != nil {
		s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
	}

	s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(start))
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
