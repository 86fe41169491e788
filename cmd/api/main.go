package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/auth"
	"github.com/draftwise/draftwise/internal/cache"
	"github.com/draftwise/draftwise/internal/config"
	"github.com/draftwise/draftwise/internal/database"
	"github.com/draftwise/draftwise/internal/generation"
	"github.com/draftwise/draftwise/internal/history"
	mw "github.com/draftwise/draftwise/internal/middleware"
	inats "github.com/draftwise/draftwise/internal/nats"
	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/quota"
	iredis "github.com/draftwise/draftwise/internal/redis"
	"github.com/draftwise/draftwise/internal/resolver"
	"github.com/draftwise/draftwise/internal/server"
	"github.com/draftwise/draftwise/internal/sharedkeys"
	"github.com/draftwise/draftwise/internal/tiers"
	"github.com/draftwise/draftwise/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// In-process caches, one per value type, closed on shutdown
	policyCache := cache.New[tiers.Policy](cache.Options{})
	modelListCache := cache.New[sharedkeys.ModelList](cache.Options{})
	catalogCache := cache.New[[]providers.CatalogModel](cache.Options{})
	defer policyCache.Close()
	defer modelListCache.Close()
	defer catalogCache.Close()

	// Crypto
	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, encryptor)
	authHandler := auth.NewHandler(authSvc, userSvc)
	userHandler := users.NewHandler(userSvc)

	// Tier policies
	tierSvc := tiers.NewService(tiers.NewRepository(pool), policyCache)
	tierHandler := tiers.NewHandler(tierSvc)

	// Shared key pool
	sharedPool := sharedkeys.NewPool(sharedkeys.NewRepository(pool), encryptor,
		providers.NewHTTPCatalog(), modelListCache, catalogCache)
	sharedHandler := sharedkeys.NewHandler(sharedPool)

	// Quota engine + background sweep
	engine := quota.NewEngine(quota.NewRepository(pool), tierSvc)
	go engine.StartSweeper(ctx, cfg.Quota.SweepInterval)
	quotaHandler := quota.NewHandler(engine)

	// History trail
	historyRepo := history.NewRepository(pool)
	historyConsumer := history.NewConsumer(natsClient, historyRepo)
	stopConsumer, err := historyConsumer.Start(ctx)
	if err != nil {
		slog.Error("starting history consumer", "error", err)
		os.Exit(1)
	}
	defer stopConsumer()
	historyHandler := history.NewHandler(historyRepo)

	// Generation
	genSvc := generation.NewService(
		resolver.New(sharedPool, userSvc),
		engine,
		providers.NewHTTPGenerator(),
		inats.NewPublisher(natsClient.JetStream()),
	)
	genHandler := generation.NewHandler(genSvc)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter: mw.NewRateLimiter(redisClient, "auth",
			cfg.RateLimit.AuthMaxReqs, cfg.RateLimit.WindowSec).Middleware,
		GenerateRateLimiter: mw.NewRateLimiter(redisClient, "generate",
			cfg.RateLimit.GenerateMaxReqs, cfg.RateLimit.WindowSec).Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:                userHandler.Me,
		SetProviderKey:    userHandler.SetProviderKey,
		DeleteProviderKey: userHandler.DeleteProviderKey,
		Generate:          genHandler.Generate,
		RecordActivity:    genHandler.RecordActivity,
		Usage:             quotaHandler.Usage,
		ListSharedModels:  sharedHandler.ListModels,
		ListHistory:       historyHandler.List,

		ListTierPolicies: tierHandler.List,
		GetTierPolicy:    tierHandler.Get,
		UpsertTierPolicy: tierHandler.Upsert,
		CreateSharedKey:  sharedHandler.Create,
		ListSharedKeys:   sharedHandler.List,
		ToggleSharedKey:  sharedHandler.Toggle,
		DeleteSharedKey:  sharedHandler.Delete,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
