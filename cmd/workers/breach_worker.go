package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sop-portal/portal-backend/internal/app"
	"sop-portal/portal-backend/internal/config"
	"sop-portal/portal-backend/internal/scheduler"
)

// The worker flags live documents whose next revision date has passed and notifies
// their owners, on the cron schedule in worker.breach_schedule.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	manager := scheduler.NewManager(logger.Named("scheduler"))
	breach := scheduler.BreachJob(application.Documents, cfg.Worker.BreachSchedule, logger.Named("breach"))
	if err := manager.AddJob(breach); err != nil {
		logger.Fatal("Failed to schedule breach sweep", zap.Error(err))
	}

	if *once || cfg.Worker.RunOnStart {
		if err := manager.RunNow(context.Background(), scheduler.BreachJobName); err != nil {
			logger.Error("Initial breach sweep failed", zap.Error(err))
		}
		if *once {
			return
		}
	}

	if err := manager.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	status, _ := manager.GetJobStatus(scheduler.BreachJobName)
	if status != nil {
		logger.Info("Worker started", zap.String("job", status.Name), zap.Time("next_run", status.NextRun))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	manager.Stop()
	logger.Info("Worker exiting")
}
