// Package server contains the HTTP handlers for the application's endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudysky/internal/auth"
	"cloudysky/internal/cache"
	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/notifications"
	"cloudysky/internal/repository"
	"cloudysky/internal/service"
	"cloudysky/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.TokenIssuer
	notifier       *notifications.Notifier

	userService         *service.UserService
	provisioningService *service.ProvisioningService
	moderationService   *service.ModerationService
	postService         *service.PostService
	commentService      *service.CommentService
	feedService         *service.FeedService
	mediaService        *service.MediaService
}

// NewServer connects to the database and Redis, then builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the cache, revocation list and moderation events
// are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	files, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	mediaRepo := repository.NewMediaRepository(db)

	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("cloudysky-api"),
		tokens:         auth.NewTokenIssuer(cfg.JWTSecret, ttl),
	}

	var events service.ModerationEvents
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		events = s.notifier
	}

	s.userService = service.NewUserService(userRepo)
	s.provisioningService = service.NewProvisioningService(
		userRepo,
		database.SchemaInitializer(db, cfg),
		s.tokens,
		cfg.ProvisioningMode,
	)
	s.moderationService = service.NewModerationService(moderationRepo, service.PolicyFromConfig(cfg), events)
	s.postService = service.NewPostService(postRepo)
	s.commentService = service.NewCommentService(commentRepo, postRepo, cfg.LenientCommentTarget)
	s.feedService = service.NewFeedService(postRepo, commentRepo, mediaRepo)
	s.mediaService = service.NewMediaService(mediaRepo, postRepo, commentRepo, files, cfg.MediaMaxUploadMB)

	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	bodyLimit := s.config.MediaMaxUploadMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}
	app := fiber.New(fiber.Config{
		AppName:   "CloudySky API",
		BodyLimit: (bodyLimit + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger("/health/live", "/health/ready", "/metrics"))

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(s.ResolveViewer())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Form endpoints answer every verb so the wrong one gets 405, not 404.
	form := app.Group("/app")
	form.All("/createUser", methodOnly(fiber.MethodPost),
		middleware.RateLimit(s.redis, 10, 10*time.Minute, "create_user"), s.CreateUser)
	form.All("/createPost", methodOnly(fiber.MethodPost), s.CreatePost)
	form.All("/createComment", methodOnly(fiber.MethodPost), s.CreateComment)
	form.All("/hidePost", methodOnly(fiber.MethodPost), s.HidePost)
	form.All("/hideComment", methodOnly(fiber.MethodPost), s.HideComment)
	form.All("/dumpFeed", methodOnly(fiber.MethodGet), s.DumpFeed)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.All("/login", methodOnly(fiber.MethodPost),
		middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.All("/logout", methodOnly(fiber.MethodPost), s.Logout)

	api.All("/feed", methodOnly(fiber.MethodGet), s.GetFeed)
	api.All("/posts/:id", methodOnly(fiber.MethodGet), s.GetPost)
	api.All("/media", methodOnly(fiber.MethodPost), s.AuthRequired(), s.UploadMedia)

	api.Get("/me", s.AuthRequired(), s.GetMyProfile)
	api.Put("/me", s.AuthRequired(), s.UpdateMyProfile)

	api.Get("/users", s.AuthRequired(), s.AdminRequired(), s.GetAllUsers)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and the schema are usable.
// Redis is optional: without it the service degrades but stays ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	schemaStatus := "ready"
	if dbStatus == "healthy" && !s.db.WithContext(ctx).Migrator().HasTable(&models.User{}) {
		schemaStatus = "missing"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || schemaStatus != "ready" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"schema":   schemaStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port and forwards moderation events to
// the log while it runs.
func (s *Server) Start(ctx context.Context) error {
	s.app = s.App()

	if s.notifier != nil {
		err := s.notifier.StartModerationSubscriber(ctx, func(ev notifications.ModerationEvent) {
			middleware.Logger.InfoContext(ctx, "moderation event",
				slog.String("kind", ev.Kind),
				slog.Uint64("target_id", uint64(ev.TargetID)),
				slog.String("actor", ev.Actor),
			)
		})
		if err != nil {
			middleware.Logger.WarnContext(ctx, "moderation subscriber not started", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
