package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/crmcore/internal/config"
	"github.com/nikhilbhutani/crmcore/internal/notify"
	"github.com/nikhilbhutani/crmcore/internal/queue"
	"github.com/nikhilbhutani/crmcore/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.SMTP.Enabled() {
		sender = notify.NewSMTPSender(cfg.SMTP)
	} else {
		slog.Warn("SMTP not configured, queued email will only be logged")
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()

	// Register workers
	emailWorker := workers.NewEmailWorker(sender)

	if err := registry.Register(queue.TypeEmailSend, asynq.HandlerFunc(emailWorker.ProcessTask)); err != nil {
		slog.Error("register worker", "error", err)
		os.Exit(1)
	}

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
