package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	CNPJ      CNPJConfig      `json:"cnpj" yaml:"cnpj"`
	Captcha   CaptchaConfig   `json:"captcha" yaml:"captcha"`
	Browser   BrowserConfig   `json:"browser" yaml:"browser"`
	Download  DownloadConfig  `json:"download" yaml:"download"`
	CNDT      CNDTConfig      `json:"cndt" yaml:"cndt"`
	CND       CNDConfig       `json:"cnd" yaml:"cnd"`
	Extractor ExtractorConfig `json:"extractor" yaml:"extractor"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	AppName      string        `json:"app_name" yaml:"app_name"`
	Version      string        `json:"version" yaml:"version"`
	Port         int           `json:"port" yaml:"port"`
	Environment  string        `json:"environment" yaml:"environment"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	Password     string        `json:"-" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
}

// CNPJConfig controls how taxpayer identifiers are validated at the API boundary
type CNPJConfig struct {
	StrictValidation bool `json:"strict_validation" yaml:"strict_validation"`
}

// CaptchaConfig holds the 2captcha-compatible solver configuration
type CaptchaConfig struct {
	APIKey        string        `json:"-" yaml:"api_key"`
	BaseURL       string        `json:"base_url" yaml:"base_url"`
	SubmitTimeout time.Duration `json:"submit_timeout" yaml:"submit_timeout"`
	PollTimeout   time.Duration `json:"poll_timeout" yaml:"poll_timeout"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	PollInterval  time.Duration `json:"poll_interval" yaml:"poll_interval"`
	MaxPolls      int           `json:"max_polls" yaml:"max_polls"`
}

// BrowserConfig holds headless Chrome launch configuration
type BrowserConfig struct {
	ExecPath      string        `json:"exec_path" yaml:"exec_path"`
	Headless      bool          `json:"headless" yaml:"headless"`
	UserAgent     string        `json:"user_agent" yaml:"user_agent"`
	ActionTimeout time.Duration `json:"action_timeout" yaml:"action_timeout"`
}

// DownloadConfig controls where certificates are downloaded and how long we wait for them
type DownloadConfig struct {
	Dir      string        `json:"dir" yaml:"dir"`
	Suffix   string        `json:"suffix" yaml:"suffix"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// CNDTConfig holds the TST portal workflow configuration
type CNDTConfig struct {
	PortalURL           string        `json:"portal_url" yaml:"portal_url"`
	MaxConcurrent       int           `json:"max_concurrent" yaml:"max_concurrent"`
	PageTimeout         time.Duration `json:"page_timeout" yaml:"page_timeout"`
	CaptchaImageTimeout time.Duration `json:"captcha_image_timeout" yaml:"captcha_image_timeout"`
	FormTimeout         time.Duration `json:"form_timeout" yaml:"form_timeout"`
}

// CNDConfig holds the Dataprev client configuration
type CNDConfig struct {
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	CacheEnabled bool          `json:"cache_enabled" yaml:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	Breaker      BreakerConfig `json:"breaker" yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for upstream calls
type BreakerConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	MaxRequests  uint32        `json:"max_requests" yaml:"max_requests"`
	OpenTimeout  time.Duration `json:"open_timeout" yaml:"open_timeout"`
	MinRequests  uint32        `json:"min_requests" yaml:"min_requests"`
	FailureRatio float64       `json:"failure_ratio" yaml:"failure_ratio"`
}

// ExtractorConfig selects the PDF text backend
type ExtractorConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Validate bool   `json:"validate" yaml:"validate"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AppName:      "CNDT Solver API",
			Version:      "1.0.0",
			Port:         8080,
			Environment:  "development",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      true,
			Host:         "localhost",
			Port:         6379,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 100,
				BurstSize:         10,
				CleanupInterval:   60 * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			},
		},
		Captcha: CaptchaConfig{
			BaseURL:       "http://2captcha.com",
			SubmitTimeout: 20 * time.Second,
			PollTimeout:   10 * time.Second,
			InitialDelay:  15 * time.Second,
			PollInterval:  5 * time.Second,
			MaxPolls:      10,
		},
		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: 20 * time.Second,
		},
		Download: DownloadConfig{
			Suffix:   ".pdf",
			Interval: time.Second,
			Timeout:  60 * time.Second,
		},
		CNDT: CNDTConfig{
			PortalURL:           "https://cndt-certidao.tst.jus.br/gerarCertidao.faces",
			MaxConcurrent:       3,
			PageTimeout:         20 * time.Second,
			CaptchaImageTimeout: 10 * time.Second,
			FormTimeout:         20 * time.Second,
		},
		CND: CNDConfig{
			BaseURL:      "http://cnd.dataprev.gov.br",
			Timeout:      10 * time.Second,
			CacheEnabled: true,
			CacheTTL:     time.Hour,
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  1,
				OpenTimeout:  30 * time.Second,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Extractor: ExtractorConfig{
			Backend:  "pdf",
			Validate: true,
		},
	}
}

// Load loads configuration: built-in defaults, then the optional CONFIG_FILE
// YAML overlay, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.AppName = getEnv("APP_NAME", c.Server.AppName)
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	c.Server.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvAsInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvAsInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.DialTimeout = getEnvAsDuration("REDIS_DIAL_TIMEOUT", c.Redis.DialTimeout)
	c.Redis.ReadTimeout = getEnvAsDuration("REDIS_READ_TIMEOUT", c.Redis.ReadTimeout)
	c.Redis.WriteTimeout = getEnvAsDuration("REDIS_WRITE_TIMEOUT", c.Redis.WriteTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Security.RateLimit.RequestsPerMinute = getEnvAsInt("RATE_LIMIT_RPM", c.Security.RateLimit.RequestsPerMinute)
	c.Security.RateLimit.BurstSize = getEnvAsInt("RATE_LIMIT_BURST", c.Security.RateLimit.BurstSize)
	c.Security.RateLimit.CleanupInterval = getEnvAsDuration("RATE_LIMIT_CLEANUP", c.Security.RateLimit.CleanupInterval)
	c.Security.CORS.AllowedOrigins = getEnvAsSlice("CORS_ALLOWED_ORIGINS", c.Security.CORS.AllowedOrigins)

	c.CNPJ.StrictValidation = getEnvAsBool("CNPJ_STRICT_VALIDATION", c.CNPJ.StrictValidation)

	c.Captcha.APIKey = getEnv("CAPTCHA_API_KEY", c.Captcha.APIKey)
	c.Captcha.BaseURL = getEnv("CAPTCHA_BASE_URL", c.Captcha.BaseURL)
	c.Captcha.SubmitTimeout = getEnvAsDuration("CAPTCHA_SUBMIT_TIMEOUT", c.Captcha.SubmitTimeout)
	c.Captcha.PollTimeout = getEnvAsDuration("CAPTCHA_POLL_TIMEOUT", c.Captcha.PollTimeout)
	c.Captcha.InitialDelay = getEnvAsDuration("CAPTCHA_INITIAL_DELAY", c.Captcha.InitialDelay)
	c.Captcha.PollInterval = getEnvAsDuration("CAPTCHA_POLL_INTERVAL", c.Captcha.PollInterval)
	c.Captcha.MaxPolls = getEnvAsInt("CAPTCHA_MAX_POLLS", c.Captcha.MaxPolls)

	c.Browser.ExecPath = getEnv("CHROME_PATH", c.Browser.ExecPath)
	c.Browser.Headless = getEnvAsBool("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.UserAgent = getEnv("BROWSER_USER_AGENT", c.Browser.UserAgent)
	c.Browser.ActionTimeout = getEnvAsDuration("BROWSER_ACTION_TIMEOUT", c.Browser.ActionTimeout)

	c.Download.Dir = getEnv("DOWNLOAD_DIR", c.Download.Dir)
	c.Download.Suffix = getEnv("DOWNLOAD_SUFFIX", c.Download.Suffix)
	c.Download.Interval = getEnvAsDuration("DOWNLOAD_POLL_INTERVAL", c.Download.Interval)
	c.Download.Timeout = getEnvAsDuration("DOWNLOAD_TIMEOUT", c.Download.Timeout)

	c.CNDT.PortalURL = getEnv("CNDT_PORTAL_URL", c.CNDT.PortalURL)
	c.CNDT.MaxConcurrent = getEnvAsInt("MAX_CONCURRENT_SOLVERS", c.CNDT.MaxConcurrent)
	c.CNDT.PageTimeout = getEnvAsDuration("CNDT_PAGE_TIMEOUT", c.CNDT.PageTimeout)
	c.CNDT.CaptchaImageTimeout = getEnvAsDuration("CNDT_CAPTCHA_IMAGE_TIMEOUT", c.CNDT.CaptchaImageTimeout)
	c.CNDT.FormTimeout = getEnvAsDuration("CNDT_FORM_TIMEOUT", c.CNDT.FormTimeout)

	c.CND.BaseURL = getEnv("CND_BASE_URL", c.CND.BaseURL)
	c.CND.Timeout = getEnvAsDuration("CND_TIMEOUT", c.CND.Timeout)
	c.CND.CacheEnabled = getEnvAsBool("CND_CACHE_ENABLED", c.CND.CacheEnabled)
	c.CND.CacheTTL = getEnvAsDuration("CND_CACHE_TTL", c.CND.CacheTTL)
	c.CND.Breaker.Enabled = getEnvAsBool("CND_BREAKER_ENABLED", c.CND.Breaker.Enabled)

	c.Extractor.Backend = getEnv("EXTRACTOR_BACKEND", c.Extractor.Backend)
	c.Extractor.Validate = getEnvAsBool("EXTRACTOR_VALIDATE", c.Extractor.Validate)
}

// Validate checks the numeric ranges the services rely on
func (c *Config) Validate() error {
	if c.CNDT.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_SOLVERS must be at least 1, got %d", c.CNDT.MaxConcurrent)
	}
	if c.Captcha.MaxPolls < 1 {
		return fmt.Errorf("CAPTCHA_MAX_POLLS must be at least 1, got %d", c.Captcha.MaxPolls)
	}
	if c.Captcha.PollInterval < 0 || c.Captcha.InitialDelay < 0 {
		return fmt.Errorf("captcha delays must not be negative")
	}
	if c.Download.Interval <= 0 {
		return fmt.Errorf("DOWNLOAD_POLL_INTERVAL must be positive")
	}
	if c.Download.Timeout < c.Download.Interval {
		return fmt.Errorf("DOWNLOAD_TIMEOUT (%s) must not be shorter than DOWNLOAD_POLL_INTERVAL (%s)", c.Download.Timeout, c.Download.Interval)
	}
	switch c.Extractor.Backend {
	case "pdf", "fitz":
	default:
		return fmt.Errorf("unknown EXTRACTOR_BACKEND %q", c.Extractor.Backend)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15s") or plain seconds ("15")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
