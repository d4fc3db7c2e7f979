// Package main contains the entrypoint for the screening bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linyuchia/speechbot/internal/bot"
	"github.com/linyuchia/speechbot/internal/bot/handlers"
	"github.com/linyuchia/speechbot/internal/bot/tasks"
	"github.com/linyuchia/speechbot/internal/config"
	"github.com/linyuchia/speechbot/internal/database"
	"github.com/linyuchia/speechbot/internal/engine"
	"github.com/linyuchia/speechbot/internal/gemini"
	"github.com/linyuchia/speechbot/internal/line"
	"github.com/linyuchia/speechbot/internal/logger"
	"github.com/linyuchia/speechbot/internal/questions"
	"github.com/linyuchia/speechbot/internal/server"
	"github.com/linyuchia/speechbot/internal/session"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// evaluator client, webhook server, scheduler), handles graceful shutdown,
// and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	repo := questions.NewRepository(store, log)
	sessions := session.NewMemoryStore()
	eng := engine.New(sessions, repo, gemClient, cfg.Messages, log)
	replier := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelToken, log)

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Engine:  eng,
		Replier: replier,
	}
	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Sessions: sessions,
		Config:   cfg,
	}

	eventHandlers := handlers.RegisterAllHandlers(hDeps)
	srv := server.New(cfg.Server.ListenAddr, cfg.Line.ChannelSecret, eventHandlers, log)

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, db, store, srv, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // blocks until the context is cancelled or a component fails

	// Give slog a moment to flush before the process exits.
	defer time.Sleep(time.Second)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
