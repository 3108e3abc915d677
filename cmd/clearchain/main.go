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

	"github.com/da-luiz/Clear-Chain/internal/app"
	"github.com/da-luiz/Clear-Chain/internal/auth"
	"github.com/da-luiz/Clear-Chain/internal/files"
	"github.com/da-luiz/Clear-Chain/internal/masterdata"
	"github.com/da-luiz/Clear-Chain/internal/observability"
	"github.com/da-luiz/Clear-Chain/internal/platform/cache"
	"github.com/da-luiz/Clear-Chain/internal/platform/db"
	"github.com/da-luiz/Clear-Chain/internal/rbac"
	"github.com/da-luiz/Clear-Chain/internal/realtime"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/vendors"
	"github.com/da-luiz/Clear-Chain/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConn, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	metrics := observability.NewMetrics()

	sessions := shared.NewSessionStore(redisClient, cfg.SessionTTL)
	approvals := shared.NewApprovalRecorder(pool, logger)

	userService := users.NewService(users.NewRepository(pool), sessions, logger)
	if created, err := userService.EnsureAdmin(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword); err != nil {
		logger.Error("bootstrap admin", slog.Any("error", err))
		os.Exit(1)
	} else if created {
		logger.Info("bootstrap admin created", slog.String("username", cfg.BootstrapAdminUser))
	}

	authService := auth.NewService(userService, sessions, auth.NewTokenIssuer(cfg.SessionSecret))
	guard := rbac.Middleware{Service: rbac.NewService(), Logger: logger}

	hub := realtime.NewHub(logger, cfg.AllowedOrigins)
	go hub.Run(ctx)

	masterService := masterdata.NewService(masterdata.NewRepository(pool))

	requestService := vendorrequests.NewService(
		vendorrequests.NewRepository(pool, approvals),
		shared.NewAuditLogger(pool),
		shared.NewIdempotencyStore(pool),
		vendorrequests.Publishers{hub, jobs.NewNotificationPublisher(jobClient)},
		logger,
	).WithMetrics(metrics).WithReferences(masterService)

	vendorService := vendors.NewService(vendors.NewRepository(pool), approvals, logger)

	storage, err := files.NewStorage(cfg.UploadDir, cfg.UploadMaxBytes, cfg.FilesURL(), files.DefaultAllowed)
	if err != nil {
		logger.Error("init file storage", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		AuthHandler:           auth.NewHandler(logger, authService),
		AuthMiddleware:        auth.Middleware{Service: authService, Logger: logger},
		RBACMiddleware:        guard,
		UsersHandler:          users.NewHandler(logger, userService),
		VendorRequestsHandler: vendorrequests.NewHandler(logger, requestService, guard, hub),
		VendorsHandler:        vendors.NewHandler(logger, vendorService, guard),
		MasterdataHandler:     masterdata.NewHandler(logger, masterService),
		FilesHandler:          files.NewHandler(storage, guard, logger),
		JobHandler:            jobs.NewHandler(inspector, logger),
		Metrics:               metrics,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
