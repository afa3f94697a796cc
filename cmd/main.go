package main

import (
	"batchchat/backend/internal/api/handler"
	"batchchat/backend/internal/chathub"
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/localization"
	"batchchat/backend/internal/queue"
	"batchchat/backend/internal/roster"
	"batchchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// 1. Database
	db, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	// 2. Migrations
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// 3. Redis is optional: without it presence is off and failed syncs are not retried.
	if !cfg.RedisEnabled() {
		log.Println("REDIS_ADDR not set, running without presence and reconcile retries.")
		return db, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting BatchChat Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 1. Dependencies
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	// 2. Chat hub
	hub := chathub.NewManagerService(chathub.NewRegistry(), s, logger)
	hub.BindSender = cfg.WSBindSender

	// 3. Roster services
	texts := localization.Default(cfg.Locale)
	reconciler := roster.NewReconciler(s, texts, logger)

	var worker *queue.Worker
	if rdb != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		retries := queue.NewClient(redisOpt, cfg.ReconcileMaxRetry)
		defer retries.Close()
		reconciler.Retry = retries

		worker = queue.NewWorker(redisOpt, cfg.ReconcileConcurrency, &queue.Handler{Reconciler: reconciler, Log: logger})
		if err := worker.Start(); err != nil {
			log.Fatalf("Failed to start reconcile worker: %v", err)
		}
	}

	batches := roster.NewBatchService(s, reconciler, logger)
	enrollments := roster.NewEnrollmentService(s, reconciler, texts, cfg.DefaultCoordinatorID, logger)
	auth := handler.NewAuth(cfg.JWTSecret, cfg.TokenTTL)

	// 4. Gin and routing
	r := gin.Default()
	h := handler.NewHandler(hub, s, batches, enrollments, reconciler, auth, logger)
	h.SendBuffer = cfg.WSSendBuffer
	h.WriteWait = cfg.WSWriteWait
	h.Register(r)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	logger.Info("listening", "addr", server.Addr, "bind_sender", cfg.WSBindSender)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	hub.Shutdown(ctx)
	if worker != nil {
		worker.Shutdown()
	}
	logger.Info("stopped")
}
