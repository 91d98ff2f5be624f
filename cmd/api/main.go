package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/wayfarer-travel/wayfarer/internal/api"
	"github.com/wayfarer-travel/wayfarer/internal/auth"
	"github.com/wayfarer-travel/wayfarer/internal/config"
	"github.com/wayfarer-travel/wayfarer/internal/database"
	"github.com/wayfarer-travel/wayfarer/internal/events"
	"github.com/wayfarer-travel/wayfarer/internal/middleware"
	"github.com/wayfarer-travel/wayfarer/internal/planner"
	"github.com/wayfarer-travel/wayfarer/internal/ratelimit"
	iredis "github.com/wayfarer-travel/wayfarer/internal/redis"
	"github.com/wayfarer-travel/wayfarer/internal/server"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
	"github.com/wayfarer-travel/wayfarer/internal/users"
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

	ctx := context.Background()

	// Migrations (opt-in via DB_MIGRATIONS_PATH)
	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional; without it plan-saved events are simply not published.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
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
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Trips
	tripRepo := trips.NewRepository(pool)
	tripSvc := trips.NewService(tripRepo, publisher)
	tripHandler := trips.NewHandler(tripSvc)

	// Per-user limiter for model-API calls
	limiter := ratelimit.New(
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
	)
	limiter.Start()
	defer limiter.Stop()

	// Planner
	geminiClient, err := planner.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		slog.Error("creating gemini client", "error", err)
		os.Exit(1)
	}
	gateway := planner.NewGateway(geminiClient, tripSvc)
	plannerHandler := planner.NewHandler(gateway, tripSvc, limiter, cfg.RateLimit)

	// Per-IP limiter for the public auth endpoints
	authLimiter := middleware.NewRateLimiter(redisClient, "ratelimit:auth:", cfg.RateLimit.AuthMaxPerMinute, 60)

	// Router
	router := api.NewRouter(pool, natsClient,
		api.RouterConfig{
			CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
			AuthRateLimiter:    authLimiter.Middleware,
		},
		api.HandlerSet{
			Register: authHandler.Register,
			Login:    authHandler.Login,
			Refresh:  authHandler.Refresh,
			Logout:   authHandler.Logout,

			CreateTrip:          tripHandler.Create,
			ListTrips:           tripHandler.List,
			GetTrip:             tripHandler.Get,
			DeleteTrip:          tripHandler.Delete,
			OwnershipMiddleware: tripHandler.OwnershipMiddleware,

			Chat:   plannerHandler.Chat,
			Replan: plannerHandler.Replan,

			AuthMiddleware: auth.Middleware(authSvc),
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
