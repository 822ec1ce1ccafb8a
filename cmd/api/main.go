package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microblog/internal/cache"
	"microblog/internal/config"
	"microblog/internal/db"
	"microblog/internal/handler"
	"microblog/internal/queue"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load()
	setLogLevel(cfg.LogLevel)

	if cfg.JWT.Secret == "" {
		if cfg.AppEnv == "production" {
			logrus.Fatal("JWT_SECRET is required in production")
		}
		cfg.JWT.Secret = uuid.NewString()
		logrus.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}

	var database *sql.DB
	if cfg.Storage.Backend == config.StorageBackendPostgres {
		database = db.Init(&cfg.DB)
		defer func() {
			if err := database.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close database connection")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.RunMigrations(ctx, database)
		cancel()
		if err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
	} else {
		logrus.WithField("data_dir", cfg.Storage.DataDir).Info("Using file storage backend")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = cache.SetupRedis(&cfg.Redis)
		defer func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close redis connection")
			}
		}()
	} else {
		logrus.Info("REDIS_HOST not set, feed cache and auth rate limiting disabled")
	}

	var conn *amqp.Connection
	if cfg.RabbitMQ.Enabled() {
		conn = queue.SetupRabbitMQ(&cfg.RabbitMQ)
		defer func() {
			if err := conn.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			}
		}()
	} else {
		logrus.Info("RABBITMQ_URL not set, post events disabled")
	}

	r, err := handler.SetupHandler(database, conn, rdb, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up handlers")
	}
	logrus.Info("Metrics endpoint exposed at /metrics")

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on :%s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
}

func setLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warnf("Invalid LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
