package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/api/handlers"
	"github.com/nexconsult/certidao-api/internal/api/middleware"
	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *services.Container
}

// NewServer creates a new HTTP server. ctx bounds background routines such as
// rate limiter eviction.
func NewServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger, services *services.Container) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
	}

	server.setupRouter(ctx)
	return server
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter(ctx context.Context) {
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.RequestID())
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.Metrics(s.services.Metrics))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())

	// Health and metrics (no rate limiting)
	healthHandler := handlers.NewHealthHandler(s.services, s.config.Server.Version, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/live", healthHandler.GetLiveness)
	s.Router.GET("/metrics", handlers.NewMetricsHandler(s.services.Metrics).GetMetrics)

	// Swagger documentation
	if !s.config.IsProduction() {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	rateLimiter := middleware.NewRateLimiter(ctx, s.config.Security.RateLimit)
	strict := s.config.CNPJ.StrictValidation

	// API v1 routes
	v1 := s.Router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())
	{
		v1.GET("/status", handlers.GetStatus)

		consulta := v1.Group("/consulta")
		{
			consulta.POST("/cndt", handlers.NewCNDTHandler(s.services.CNDTService, strict, s.logger).Generate)
			consulta.GET("/cnd", handlers.NewCNDHandler(s.services.CNDService, strict, s.logger).Lookup)
		}

		cache := v1.Group("/cache")
		{
			cacheHandler := handlers.NewCacheHandler(s.services.CNDCache, s.logger)
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/cnd/:cnpj", cacheHandler.DeleteCND)
		}
	}

	s.Router.HandleMethodNotAllowed = true

	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Detail:    "Recurso não encontrado.",
			Code:      "NOT_FOUND",
			RequestID: c.GetString("request_id"),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	})

	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{
			Detail:    "Método não permitido para este recurso.",
			Code:      "METHOD_NOT_ALLOWED",
			RequestID: c.GetString("request_id"),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	})
}

// HTTPServer wraps the router with the configured timeouts
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
}
