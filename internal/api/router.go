package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"

	"github.com/taskhive/task-system/internal/api/handler"
	"github.com/taskhive/task-system/internal/api/middleware"
	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

// Deps carries the constructed collaborators the router wires into handlers.
// Stores and services are built once at startup and shared read-only across
// all request-handling contexts; no handler reaches for ambient globals.
type Deps struct {
	DB            *mongo.Database
	Redis         *redis.Client
	Sessions      ports.SessionStore
	AuthService   ports.AuthService
	TaskService   ports.TaskService
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookie  bool
	RateLimitMax  int
	Log           zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("taskhive"))
	if deps.RateLimitMax > 0 {
		e.Use(echomiddleware.RateLimiter(
			echomiddleware.NewRateLimiterMemoryStore(rate.Limit(deps.RateLimitMax)),
		))
	}

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.SessionTTL, deps.SecureCookie)
	taskHandler := handler.NewTaskHandler(deps.TaskService)
	session := middleware.Session(deps.SessionSecret, deps.Sessions, deps.SessionTTL)

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, session)
	auth.PUT("/password", authHandler.UpdatePassword, session)

	// --- Task routes ---
	// Cumulative role hierarchy: guarding with the minimum required role is
	// enough, an admin also carries moderator and basic.
	tasks := e.Group("/api/tasks", session, middleware.RequireRole(domain.RoleBasic))
	tasks.GET("", taskHandler.List)
	tasks.GET("/export", taskHandler.Export, middleware.RequireRole(domain.RoleAdmin))
	tasks.GET("/:id", taskHandler.Get)
	tasks.POST("", taskHandler.Create)
	tasks.PATCH("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete, middleware.RequireRole(domain.RoleModerator))
	tasks.GET("/:id/attachment", taskHandler.DownloadAttachment)
	tasks.POST("/:id/attachment", taskHandler.UploadAttachment, middleware.RequireRole(domain.RoleModerator))
	tasks.DELETE("/:id/attachment", taskHandler.RemoveAttachment, middleware.RequireRole(domain.RoleModerator))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.DB, deps.Redis)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
