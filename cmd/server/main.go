package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/events"
	"chat_engine/internal/handler"
	"chat_engine/internal/metrics"
	"chat_engine/internal/middleware"
	"chat_engine/internal/repository"
	"chat_engine/internal/retention"
	"chat_engine/internal/service"
	"chat_engine/internal/storage"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to parse database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), dbPool); err != nil {
			appLogger.Fatal("Failed to migrate database", "error", err)
		}
		appLogger.Info("Database schema is up to date")
	}

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	files, err := storage.NewLocalStore(cfg.Chat.Attachments.Root, cfg.Chat.Attachments.BaseURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize attachment storage", "error", err)
	}
	signer := storage.NewSigner(cfg.JWT.AccessSecret, cfg.JWT.Issuer)

	appMetrics := metrics.New("chat")
	hub := events.NewHub(appLogger).WithObserver(appMetrics)
	sink := events.Multi(
		hub,
		events.NewRedisSink(rdb, appLogger),
		events.NewAuditSink(repos.Audit, appLogger),
		appMetrics,
	)

	services, err := service.NewServices(service.Dependencies{
		Store:     repos.Store,
		Presence:  repos.Presence,
		Audit:     repos.Audit,
		RateLimit: repos.RateLimit,
		Files:     files,
		Signer:    signer,
		Events:    sink,
		Config:    cfg.Chat,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize services", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Chat.Retention.Enabled {
		scheduler, err := retention.NewScheduler(cfg.Chat.Retention.Cron, observedCleaner{services.Retention, appMetrics}, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create retention scheduler", "error", err)
		}
		scheduler.Start(ctx)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AccessSecret, cfg.JWT.Issuer, cfg.JWT.DefaultActorType, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.RateLimit.Requests, cfg.RateLimit.Window, appLogger)

	handlers := handler.NewHandlers(services, handler.Options{
		Hub:    hub,
		Files:  files,
		Signer: signer,
		Auth:   authMiddleware,
		Checks: []handler.HealthCheck{
			{Name: "postgres", Check: dbPool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	}, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, appMetrics, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

// observedCleaner передает результаты очистки в метрики.
type observedCleaner struct {
	retention service.RetentionService
	metrics   *metrics.Metrics
}

func (o observedCleaner) RunCleanup(ctx context.Context) (map[string]int64, error) {
	results, err := o.retention.RunCleanup(ctx)
	o.metrics.ObserveCleanup(results)
	return results, err
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	appMetrics *metrics.Metrics,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	router.Use(middleware.RequestLogger(log))
	router.Use(appMetrics.Middleware())
	router.Use(middleware.ErrorHandler(log))

	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))
	handlers.Register(router, authMiddleware.RequireAuth(), rateLimitMiddleware.Limit("write"))

	return router
}
