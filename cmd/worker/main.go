package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/app"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/audit"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/observability"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/platform/db"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	auditRepo := audit.NewRepository(pool)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Queues: map[string]int{
			audit.QueueAudit: 1,
		},
		Handlers: []jobs.TaskHandler{
			{Type: audit.TaskSecurityLog, Handler: audit.NewSecurityLogHandler(auditRepo, metrics, logger)},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("audit worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
