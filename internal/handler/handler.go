package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"microblog/internal/auth"
	"microblog/internal/cache"
	"microblog/internal/config"
	"microblog/internal/images"
	"microblog/internal/middleware"
	"microblog/internal/observability"
	"microblog/internal/post"
	"microblog/internal/queue"
	"microblog/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SetupHandler initializes all dependencies and routes. db may be nil with
// the file storage backend; redisClient and conn may be nil to disable the
// feed cache, rate limiting and post events.
func SetupHandler(db *sql.DB, conn *amqp.Connection, redisClient *redis.Client, cfg *config.Config) (*gin.Engine, error) {
	metrics := observability.InitMetrics()

	// Initialize repositories
	userRepo, postRepo, err := NewRepositories(db, cfg)
	if err != nil {
		return nil, err
	}

	imageStore, err := images.NewStore(context.Background(), cfg.Images)
	if err != nil {
		return nil, fmt.Errorf("image store: %w", err)
	}

	policy := post.NewPolicy(cfg.Posts)
	deps := post.Deps{
		Images:  imageStore,
		Metrics: metrics,
	}
	if redisClient != nil {
		deps.Cache = cache.NewFeedCache(redisClient)
	}
	if conn != nil {
		deps.Events = queue.NewPublisher(conn, cfg.RabbitMQ.Queue, metrics)
	}

	// Initialize services
	hasher := auth.NewPasswordHasher(cfg.JWT.BcryptCost)
	userService := user.NewUserService(userRepo, hasher, metrics)
	postService := post.NewPostService(postRepo, policy, deps)

	sessions := auth.NewSessionManager(auth.SessionConfig{
		Secret:     cfg.JWT.Secret,
		TTL:        cfg.JWT.SessionTTL,
		CookieName: cfg.JWT.CookieName,
		Secure:     cfg.JWT.Secure,
	})

	// Initialize controllers
	userController := user.NewUserController(userService, sessions)
	postController := post.NewPostController(postService, policy, cfg.Images.MaxBytes)

	r := gin.Default()
	r.Use(middleware.PrometheusMiddleware(metrics))
	r.Use(middleware.LoadSession(sessions, userService))

	setupRoutes(r, userController, postController, redisClient)

	if local, ok := imageStore.(*images.LocalStore); ok {
		r.Static(images.LocalURLPrefix, local.Dir())
	}
	if cfg.StaticDir != "" {
		r.NoRoute(spaFallback(cfg.StaticDir))
	}

	return r, nil
}

// setupRoutes configures all application routes
func setupRoutes(r *gin.Engine, userCtrl *user.UserController, postCtrl *post.PostController, redisClient *redis.Client) {
	limited := func(cfg *middleware.RateLimiterConfig, h gin.HandlerFunc) []gin.HandlerFunc {
		if redisClient == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{middleware.RateLimiterMiddleware(redisClient, cfg), h}
	}

	// Authentication
	r.POST("/signup", limited(middleware.StrictRateLimiter(), userCtrl.Signup)...)
	r.POST("/login", limited(middleware.StrictRateLimiter(), userCtrl.Login)...)
	r.POST("/logout", userCtrl.Logout)
	r.GET("/me", userCtrl.Me)

	// Feed
	r.GET("/posts", limited(middleware.GenerousRateLimiter(), postCtrl.ListPosts)...)
	r.POST("/posts", postCtrl.CreatePost)

	// Operations
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
