package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/app"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/audit"
	audithttp "github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/audit/http"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/auth"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/observability"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/platform/cache"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/platform/db"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "aegis_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	rbacStore := authz.NewPGStore(pool)
	authzService := authz.NewService(authz.ServiceConfig{
		Store: rbacStore,
		Resolvers: []authz.ScopeResolver{
			authz.NewAtivoResolver(pool),
			authz.NewFuncionarioResolver(pool),
		},
		Recorder: audit.NewSink(asynqClient, metrics, logger),
		Metrics:  metrics,
		Logger:   logger,
	})
	tenantGuard := authz.NewTenantGuard(rbacStore, logger)

	authService := auth.NewService(auth.NewRepository(pool), rbacStore)
	auditService := audit.NewService(audit.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthService:    authService,
		AuthHandler:    auth.NewHandler(logger, authService, sessionManager),
		AuthzHandler:   authz.NewHandler(logger, authzService),
		AuditHandler:   audithttp.NewHandler(logger, auditService),
		AuthzMiddleware: authz.Middleware{
			Service:      authzService,
			Guard:        tenantGuard,
			TenantHeader: cfg.TenantHeader,
			Logger:       logger,
		},
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
