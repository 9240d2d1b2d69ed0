// Package server contains the HTTP and WebSocket handlers of the feed API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "charityfeed/docs" // swagger docs
	"charityfeed/internal/cache"
	"charityfeed/internal/config"
	"charityfeed/internal/featureflags"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/notifications"
	"charityfeed/internal/repository"
	"charityfeed/internal/service"
	"charityfeed/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// The Prometheus collectors behind fiberprometheus live in the default
// registry, so every Server in the process shares one instance.
var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

func sharedPrometheus() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = fiberprometheus.New("charityfeed-api")
	})
	return promMW
}

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	store       storage.ObjectStore
	app         *fiber.App
	prom        *fiberprometheus.FiberPrometheus
	validate    *validator.Validate
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	featureFlags *featureflags.Manager
	notifier     *notifications.Notifier
	hub          *notifications.Hub

	authService       *service.AuthService
	postService       *service.PostService
	engagementService *service.EngagementService
}

// Options tune service construction. Zero values use production defaults.
type Options struct {
	BcryptCost int
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redis client disables caching, revocation and cross-instance events.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore, opts Options) (*Server, error) {
	if cfg == nil || db == nil || store == nil {
		return nil, errors.New("server: config, database and object store are required")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	cacheStore := cache.NewStore(redisClient)

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        redisClient,
		store:        store,
		prom:         sharedPrometheus(),
		validate:     newValidator(),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
		notifier:     notifications.NewNotifier(redisClient),
		hub:          notifications.NewHub(),
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())

	events := &liveEvents{notifier: s.notifier, flags: s.featureFlags}
	s.authService = service.NewAuthService(userRepo, cacheStore, s.featureFlags, service.AuthServiceConfig{
		Secret:     cfg.JWTSecret,
		TokenTTL:   time.Duration(cfg.JWTTTLHours) * time.Hour,
		BcryptCost: opts.BcryptCost,
	})
	s.postService = service.NewPostService(postRepo, engagementRepo, userRepo, store, cacheStore, events, s.authService,
		service.PostServiceConfig{
			PageSize:       cfg.FeedPageSize,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		})
	s.engagementService = service.NewEngagementService(engagementRepo, postRepo, cacheStore, events)

	return s, nil
}

// Engagement exposes the engagement service to the scheduler.
func (s *Server) Engagement() *service.EngagementService {
	return s.engagementService
}

// liveEvents publishes feed events while the live_updates flag is on.
type liveEvents struct {
	notifier *notifications.Notifier
	flags    *featureflags.Manager
}

func (e *liveEvents) PublishFeedEvent(ctx context.Context, ev models.FeedEvent) error {
	if !e.flags.Enabled(featureflags.LiveUpdates, 0) {
		return nil
	}
	return e.notifier.PublishFeedEvent(ctx, ev)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(s.prom.Middleware)

	app.Use(helmet.New(helmet.Config{
		// media is served from the object store origin
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	s.prom.RegisterAt(app, "/metrics")

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/admin-setup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "admin_setup"), s.AdminSetup)
	auth.Post("/logout", s.authRequired(), s.Logout)
	auth.Get("/session", s.CurrentSession)

	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth(s.authService), s.ListPosts)
	posts.Post("/liked", s.authRequired(), s.LikedPosts)
	posts.Get("/:id", middleware.OptionalAuth(s.authService), s.GetPost)
	posts.Get("/:id/comments", s.ListComments)
	posts.Post("/:id/share", middleware.RateLimit(s.redis, 30, time.Minute, "share"), s.SharePost)
	posts.Post("/:id/like", s.authRequired(), middleware.RateLimit(s.redis, 60, time.Minute, "like"), s.ToggleLike)
	posts.Post("/:id/comments", s.authRequired(), middleware.RateLimit(s.redis, 10, time.Minute, "comment"), s.AddComment)

	admin := api.Group("/admin", s.authRequired(), middleware.OperatorRequired(s.authService.IsOperator))
	admin.Post("/posts", s.CreatePost)
	admin.Get("/posts", s.AdminListPosts)
	admin.Patch("/posts/:id/status", s.UpdatePostStatus)
	admin.Delete("/posts/:id", s.DeletePost)
	admin.Get("/stats", s.DashboardStats)
	admin.Get("/flags", s.GetFeatureFlags)
	admin.Patch("/flags/:name", s.adminRoleRequired(), s.SetFeatureFlag)

	app.Get("/ws/feed", s.websocketUpgrade, s.FeedWebSocket())
}

func (s *Server) authRequired() fiber.Handler {
	return middleware.AuthRequired(s.authService)
}

// adminRoleRequired ignores the operator_any_session flag, so the flag can
// never be used to grant itself.
func (s *Server) adminRoleRequired() fiber.Handler {
	return middleware.OperatorRequired(func(session *models.Session) bool {
		return session.User.IsAdmin()
	})
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Charity Feed API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		BodyLimit:    int(s.config.MaxUploadBytes())*service.MaxMediaPerPost + 1<<20,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return s.fail(c, err)
}

// Start wires live events and serves HTTP until Shutdown.
func (s *Server) Start() error {
	app := s.App()

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start feed event wiring", slog.String("error", err.Error()))
		}
	}()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("feed hub: %w", err))
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("database: %w", cerr))
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("redis: %w", rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: its
// absence degrades caching but does not take the API out of rotation.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	checks["database"] = "healthy"
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unhealthy"
		healthy = false
	}

	checks["storage"] = "healthy"
	if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = "unhealthy"
		healthy = false
	}

	switch {
	case s.redis == nil:
		checks["redis"] = "disabled"
	case s.redis.Ping(ctx).Err() != nil:
		checks["redis"] = "unhealthy"
		healthy = false
	default:
		checks["redis"] = "healthy"
	}

	status, overall := fiber.StatusOK, "healthy"
	if !healthy {
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
