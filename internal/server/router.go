package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/handlers"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/monitoring"
)

func NewRouter(deps *Dependencies) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(apierrors.MethodNotAllowed())
	router.NoRoute(apierrors.NoRoute())

	router.Use(
		middleware.RequestID(),
		middleware.RecoveryWithLog(),
		middleware.RequestLogger(),
		monitoring.MetricsMiddleware(),
		cors.New(corsConfig(cfg.Server.AllowedOrigins)),
	)

	registerHealthRoutes(router, deps)

	api := router.Group("/")
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		api.Use(limiter.Middleware())
	}

	requireAuth := middleware.RequireAuth(deps.AuthService)
	optionalAuth := middleware.OptionalAuth(deps.AuthService)

	registerHandler := handlers.NewRegisterHandler(deps.AuthService)
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	refreshHandler := handlers.NewRefreshHandler(deps.AuthService)
	logoutHandler := handlers.NewLogoutHandler(deps.AuthService)
	userHandler := handlers.NewUserHandler(deps.AuthService)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)

	api.POST("/register/", registerHandler.Registration)
	api.POST("/login/", authHandler.Login)
	api.POST("/token/refresh/", refreshHandler.Refresh)
	api.POST("/token/verify/", refreshHandler.Verify)
	api.POST("/logout/", requireAuth, logoutHandler.Logout)

	users := api.Group("/users/me", requireAuth)
	{
		users.GET("/", userHandler.GetUserProfile)
		users.PUT("/", userHandler.UpdateUserProfile)
		users.PATCH("/", userHandler.PatchUserProfile)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("/", optionalAuth, taskHandler.GetTasks)
		tasks.POST("/", requireAuth, taskHandler.CreateTask)
		tasks.GET("/:id/", optionalAuth, taskHandler.GetTaskByID)
		tasks.PUT("/:id/", requireAuth, taskHandler.UpdateTask)
		tasks.PATCH("/:id/", requireAuth, taskHandler.PatchTask)
		tasks.DELETE("/:id/", requireAuth, taskHandler.DeleteTask)
	}

	return router
}

func registerHealthRoutes(router *gin.Engine, deps *Dependencies) {
	health := monitoring.NewHealthChecker(healthCheckTimeout)
	health.Register("database", deps.DB.Health)
	if deps.Cache != nil {
		health.Register("redis", deps.Cache.Health)
	}

	// Readiness only depends on the database. Redis is optional.
	ready := monitoring.NewHealthChecker(healthCheckTimeout)
	ready.Register("database", deps.DB.Health)

	router.GET("/health", health.HealthHandler())
	router.GET("/health/live", health.LivenessHandler())
	router.GET("/health/ready", ready.ReadinessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
