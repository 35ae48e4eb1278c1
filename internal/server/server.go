// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	_ "artvault/docs" // swagger docs
	"artvault/internal/config"
	"artvault/internal/featureflags"
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/notifications"
	"artvault/internal/repository"
	"artvault/internal/service"
	"artvault/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          *repository.Store
	redis          *redis.Client
	objects        storage.ObjectStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	auth         *middleware.Authenticator
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	limiter      *middleware.RateLimiter

	postService     *service.PostService
	reactionService *service.ReactionService
	commentService  *service.CommentService
	userService     *service.UserService
	discoverService *service.DiscoverService
	imageService    *service.ImageService
}

// NewServer creates a Server over already-initialized dependencies. The
// bootstrap layer opens the store and Redis; redisClient may be nil, in which
// case caching, token revocation and cross-instance events are disabled.
func NewServer(cfg *config.Config, store *repository.Store, redisClient *redis.Client, objects storage.ObjectStore) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if store == nil {
		return nil, errors.New("server: store is required")
	}

	server := &Server{
		config:         cfg,
		store:          store,
		redis:          redisClient,
		objects:        objects,
		promMiddleware: middleware.InitMetrics("artvault-api"),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret, redisClient),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		limiter:        middleware.NewRateLimiter(redisClient, cfg.Env),
	}
	server.hub = notifications.NewHub(server.notifier)
	for _, entry := range server.featureFlags.Rejected() {
		middleware.Logger.Warn("ignoring malformed feature flag", slog.String("entry", entry))
	}

	server.userService = service.NewUserService(store.Users)
	server.postService = service.NewPostService(store.Posts, store.Users, objects, server.userService.IsAdmin)
	server.reactionService = service.NewReactionService(store.Reactions, store.Posts)
	server.commentService = service.NewCommentService(store.Comments, store.Posts, server.userService.IsAdmin)
	server.discoverService = service.NewDiscoverService(store.Posts, store.Users, cfg.NearbyRadiusKM)
	server.imageService = service.NewImageService(objects, server.featureFlags, cfg)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Images are served cross-origin to the web client.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger("/health", "/health/live", "/health/ready", "/metrics"))

	// CORS runs before the limiter so 429 responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultAllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "X-Request-ID, X-Trace-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	perMinute := s.config.GlobalRateLimit
	if perMinute <= 0 {
		perMinute = defaultGlobalRateLimit
	}
	app.Use(limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			// Preflights and probes are never throttled.
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, try again later",
				Code:  middleware.CodeRateLimited,
			})
		},
	}))
}

const (
	defaultAllowedOrigins  = "http://localhost:8081,http://localhost:19006,http://127.0.0.1:8081"
	defaultGlobalRateLimit = 100
)

// Per-action budgets. Auth limits fail closed.
var (
	limitSignup        = middleware.Limit{Name: "signup", Max: 3, Window: 10 * time.Minute, FailClosed: true}
	limitLogin         = middleware.Limit{Name: "login", Max: 10, Window: 5 * time.Minute, FailClosed: true}
	limitCreatePost    = middleware.Limit{Name: "create_post", Max: 5, Window: 5 * time.Minute}
	limitCreateComment = middleware.Limit{Name: "create_comment", Max: 10, Window: time.Minute}
	limitUploadImage   = middleware.Limit{Name: "upload_image", Max: 10, Window: time.Minute}
	limitSearch        = middleware.Limit{Name: "search", Max: 30, Window: time.Minute}
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Locally stored images
	if local, ok := s.objects.(*storage.LocalStore); ok && local.Root() != "" {
		app.Static("/media", local.Root(), fiber.Static{
			MaxAge: 86400,
		})
	}

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", s.limiter.Handler(limitSignup), s.Signup)
	auth.Post("/login", s.limiter.Handler(limitLogin), s.Login)
	auth.Post("/logout", s.auth.Required(), s.Logout)

	required := s.auth.Required()
	optional := s.auth.Optional()

	// Posts. Specific /:id/:resource routes before the generic /:id route.
	posts := api.Group("/posts")
	posts.Get("/", optional, s.GetPosts)
	posts.Get("/search", optional, s.limiter.Handler(limitSearch), s.SearchPosts)
	posts.Post("/", required, s.limiter.Handler(limitCreatePost), s.CreatePost)
	posts.Post("/:id/like", required, s.LikePost)
	posts.Post("/:id/save", required, s.SavePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", required, s.limiter.Handler(limitCreateComment), s.CreateComment)
	posts.Put("/:id/comments/:commentId", required, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", required, s.DeleteComment)
	posts.Get("/:id", optional, s.GetPost)
	posts.Put("/:id", required, s.UpdatePost)
	posts.Delete("/:id", required, s.DeletePost)

	api.Get("/artists/:artist/posts", optional, s.GetPostsByArtist)

	// Discovery
	api.Get("/search", optional, s.limiter.Handler(limitSearch), s.Search)
	api.Get("/exhibitions/nearby", s.GetNearbyExhibitions)

	// Users. /me and /search before the generic /:id routes.
	users := api.Group("/users")
	users.Get("/search", s.limiter.Handler(limitSearch), s.SearchUsers)
	users.Get("/me", required, s.GetMyProfile)
	users.Put("/me", required, s.UpdateMyProfile)
	users.Get("/me/liked", required, s.GetMyLikedPosts)
	users.Get("/me/saved", required, s.GetMySavedPosts)
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Get("/:id/exhibitions", s.GetUserExhibitions)
	users.Get("/:id", s.GetUserProfile)

	// Image upload
	api.Post("/images", required, s.limiter.Handler(limitUploadImage), s.UploadImage)

	// Realtime feed events
	api.Get("/ws", s.auth.WebSocketRequired(), s.WebsocketHandler())

	// Admin routes
	admin := api.Group("/admin", required, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so only
// a configured but unreachable Redis fails the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "disabled"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"driver":   s.config.DBDriver,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after auth.Required so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := s.userService.IsAdmin(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !admin {
			return models.RespondWithAppError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "ArtVault API",
		BodyLimit: int(s.imageService.MaxUploadBytes()) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
				"path", c.Path(), "error", err)
			return models.RespondWithAppError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	// Wire the hub to the Redis subscriber if available
	if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
		log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	// Close WebSocket connections gracefully
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", s.hub.Name(), err))
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	log.Println("Server shutdown complete")
	return errors.Join(errs...)
}
