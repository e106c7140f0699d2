package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-rbac/internal/app"
	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/catalog"
	"github.com/odyssey-erp/odyssey-rbac/internal/observability"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/posts"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/roles"
	"github.com/odyssey-erp/odyssey-rbac/internal/users"
	"github.com/odyssey-erp/odyssey-rbac/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("migrate schema", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	store := rbac.NewPGStore(dbpool)

	var (
		grants rbac.GrantReader = store
		hooks                   = rbac.Hooks{Logger: logger}
	)
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, grant cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		grantCache := rbac.NewGrantCache(redisClient, store, cfg.RBACCacheTTL, logger)
		grants = grantCache
		hooks.Invalidator = grantCache
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	hooks.Auditor = jobClient

	unscoped, err := cfg.UnscopedPolicy()
	if err != nil {
		logger.Error("rbac unscoped policy", slog.Any("error", err))
		os.Exit(1)
	}
	engine := rbac.NewEngine(grants,
		rbac.WithUnscopedPolicy(unscoped),
		rbac.WithObserver(metrics),
		rbac.WithLogger(logger),
	)
	rbacMiddleware := rbac.Middleware{Authorizer: rbac.NewAuthorizer(engine), Logger: logger}
	logger.Info("rbac engine ready", slog.String("unscoped_policy", unscoped.String()), slog.Bool("cache", redisClient != nil))

	tokens, err := auth.NewTokens(cfg.AuthTokenSecret, cfg.AuthTokenIssuer, cfg.AuthTokenTTL)
	if err != nil {
		logger.Error("auth tokens", slog.Any("error", err))
		os.Exit(1)
	}
	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool), tokens))

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool)))
	rolesHandler := roles.NewHandler(logger, roles.NewService(roles.NewRepository(dbpool), hooks), rbacMiddleware)
	catalogHandler := catalog.NewHandler(logger, catalog.NewService(catalog.NewRepository(dbpool), hooks), rbacMiddleware)
	rbacHandler := rbac.NewHandler(logger, rbac.NewService(store, hooks), rbacMiddleware)
	postsHandler := posts.NewHandler(logger, posts.NewService(posts.NewRepository(dbpool)), rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		RolesHandler:   rolesHandler,
		CatalogHandler: catalogHandler,
		RBACHandler:    rbacHandler,
		PostsHandler:   postsHandler,
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
