package handlers

import (
	"net/http"

	"grc-portal/helper"
	"grc-portal/logger"
	"grc-portal/metrics"
	"grc-portal/middleware"
	"grc-portal/models"
	"grc-portal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	AuthService   services.AuthService
	PolicyService services.PolicyService
	JWTSecret     []byte
	Log           zerolog.Logger
	Metrics       *metrics.Metrics
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

func SetupRouter(cfg RouterConfig) *gin.Engine {
	httpHelper := helper.NewHTTPHelper()
	authHandler := NewAuthHandler(cfg.AuthService, httpHelper)
	policyHandler := NewPolicyHandler(cfg.PolicyService, httpHelper)

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(cfg.Log), cfg.Metrics.GinMiddleware())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.PUT("/users/:id/role", middleware.RequireRole(models.RoleAdmin), authHandler.SetUserRole)

			policyHandler.Register(protected,
				middleware.RequireRole(models.EditRoles...),
				middleware.RequireRole(models.ReviewRoles...),
				middleware.RequireRole(models.ApproveRoles...),
			)
		}
	}

	return router
}
