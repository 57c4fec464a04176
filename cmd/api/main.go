package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nexconsult/certidao-api/internal/api"
	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/logger"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/sirupsen/logrus"

	// Import docs for Swagger
	_ "github.com/nexconsult/certidao-api/docs"
)

// @title CNDT Solver API
// @version 1.0
// @description Emissão de CNDT (TST) com resolução de CAPTCHA e consulta de CND (Dataprev)
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.nexconsult.com/support
// @contact.email support@nexconsult.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.WithFields(logrus.Fields{
		"app":             cfg.Server.AppName,
		"version":         cfg.Server.Version,
		"max_concurrent":  cfg.CNDT.MaxConcurrent,
		"extractor":       cfg.Extractor.Backend,
		"captcha_enabled": cfg.Captcha.APIKey != "",
	}).Info("Starting certificate API server...")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	serviceContainer, err := services.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}
	defer serviceContainer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(ctx, cfg, logger, serviceContainer)
	httpServer := server.HTTPServer(fmt.Sprintf(":%d", cfg.Server.Port))

	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Server.Environment,
		}).Info("Server starting...")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// CNDT workflows can take minutes; give in-flight ones the write timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
