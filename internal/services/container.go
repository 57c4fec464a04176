package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	cancel      context.CancelFunc

	Metrics     *Metrics
	Gate        *ConcurrencyGate
	Captcha     *TwoCaptchaSolver
	CNDCache    *CNDCache
	CNDTService *CNDTService
	CNDService  *CNDService
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config:  cfg,
		logger:  logger,
		Metrics: NewMetrics(),
	}

	container.initRedis()

	if err := container.initServices(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

// initRedis connects to Redis; failures leave the cache on its memory fallback
func (c *Container) initRedis() {
	if !c.config.Redis.Enabled {
		c.logger.Info("Redis disabled, using in-memory cache")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis connection failed, running with in-memory cache")
		client.Close()
		return
	}

	c.logger.Info("Redis connection established")
	c.redisClient = client
}

// initServices initializes all services
func (c *Container) initServices() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.CNDCache = NewCNDCache(c.redisClient, c.config.CND.CacheTTL, c.logger)
	c.CNDCache.StartCleanupRoutine(ctx, 0)

	c.Gate = NewConcurrencyGate(c.config.CNDT.MaxConcurrent)
	c.Metrics.SetGate(c.Gate.Stats())

	c.Captcha = NewTwoCaptchaSolver(c.config.Captcha, &http.Client{}, c.logger)

	c.CNDTService = NewCNDTService(c.config.CNDT, c.config.Download.Dir, CNDTDependencies{
		Gate:      c.Gate,
		Launcher:  NewChromeLauncher(c.config.Browser, c.logger),
		Solver:    c.Captcha,
		Watcher:   NewDownloadWatcher(c.config.Download),
		Extractor: NewDocumentExtractor(c.config.Extractor, c.logger),
		Metrics:   c.Metrics,
	}, c.logger)

	cndService, err := NewCNDService(c.config.CND, &http.Client{Timeout: c.config.CND.Timeout}, c.CNDCache, c.Metrics, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize CND service: %w", err)
	}
	c.CNDService = cndService

	return nil
}

// Close stops background routines and closes connections
func (c *Container) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.CNDCache != nil {
		health["cache"] = c.CNDCache.Health()
	}
	if c.Captcha != nil {
		health["captcha"] = c.Captcha.Health()
	}
	if c.CNDTService != nil {
		health["cndt"] = c.CNDTService.Health()
	}
	if c.CNDService != nil {
		health["cnd"] = c.CNDService.Health()
	}

	return health
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
