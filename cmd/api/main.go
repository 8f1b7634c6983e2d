package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bay-catalog/internal/config"
	"bay-catalog/internal/db"
	apihttp "bay-catalog/internal/http"
	"bay-catalog/internal/logging"
	"bay-catalog/internal/repository"
	"bay-catalog/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	checks := map[string]apihttp.HealthCheck{}
	var snapshots repository.SnapshotRepository
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		defer conn.Close()
		snapshots = repository.NewSQLiteSnapshotRepository(conn)
		checks["database"] = conn.PingContext
	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.MigratePostgres(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		snapshots = repository.NewPgSnapshotRepository(pool)
		checks["database"] = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	}

	var (
		limiter = service.NewLoginRateLimiter(cfg.LoginWindow, cfg.LoginMaxAttempts)
		revoked service.SessionRevocationStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory session stores", zap.Error(err))
		} else {
			limiter = service.NewRedisLoginRateLimiter(redisClient, cfg.LoginWindow, cfg.LoginMaxAttempts)
			revoked = service.NewRedisRevocationStore(redisClient)
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
		cancel()
	}

	sessions := service.NewSessionServiceWithStores(cfg.AdminPassword, cfg.SessionSecret, cfg.SessionTTL, revoked, limiter)
	documents := service.NewDocumentService(logger, snapshots)

	cookie := apihttp.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		MaxAge: sessions.TTL(),
	}
	router := apihttp.NewRouter(
		logger,
		sessions,
		cookie,
		apihttp.NewAuthHandler(logger, sessions, cookie),
		apihttp.NewDataHandler(logger, documents, cfg.MaxDocumentBytes),
		apihttp.NewHealthHandler(logger, checks),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.Bool("redis", cfg.RedisAddr != ""),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
