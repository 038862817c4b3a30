// Package api provides the HTTP ingest and query surface for the risk-scoring service.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/api/middleware"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/config"
)

const (
	// DefaultPort is the default HTTP server port (API_PORT).
	DefaultPort = 8000
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host (API_HOST).
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP read/write operations.
	DefaultTimeout = 15 * time.Second
	// DefaultShutdownTimeout bounds how long Start waits for in-flight requests on shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = slog.LevelInfo
	// DefaultCORSMaxAge is the default CORS preflight cache duration, in seconds.
	DefaultCORSMaxAge = 86400
	// DefaultRateLimitRPS is the default global ingest rate limit.
	DefaultRateLimitRPS = 50
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds HTTP server configuration for the ingest and query surface.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
	RateLimitRPS       int
}

// LoadServerConfig loads server configuration from environment variables with sensible defaults.
func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Port:               config.GetEnvInt("API_PORT", DefaultPort),
		Host:               config.GetEnvStr("API_HOST", DefaultHost),
		ReadTimeout:        config.GetEnvDuration("API_READ_TIMEOUT", DefaultTimeout),
		WriteTimeout:       config.GetEnvDuration("API_WRITE_TIMEOUT", DefaultTimeout),
		ShutdownTimeout:    config.GetEnvDuration("API_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogLevel:           config.GetEnvLogLevel("LOG_LEVEL", DefaultLogLevel),
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Correlation-ID"},
		CORSMaxAge:         DefaultCORSMaxAge,
		RateLimitRPS:       config.GetEnvInt("API_RATE_LIMIT_RPS", DefaultRateLimitRPS),
	}

	if origins := config.GetEnvStr("API_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = config.ParseCommaSeparatedList(origins)
	}

	if methods := config.GetEnvStr("API_CORS_ALLOWED_METHODS", ""); methods != "" {
		cfg.CORSAllowedMethods = config.ParseCommaSeparatedList(methods)
	}

	if headers := config.GetEnvStr("API_CORS_ALLOWED_HEADERS", ""); headers != "" {
		cfg.CORSAllowedHeaders = config.ParseCommaSeparatedList(headers)
	}

	return cfg
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfig.
func (c ServerConfig) ToCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// CORSConfig holds CORS configuration options, centralized here so both the
// server and the middleware package can depend on a single shape.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// GetAllowedOrigins returns the allowed origins for CORS.
func (c CORSConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }

// GetAllowedMethods returns the allowed methods for CORS.
func (c CORSConfig) GetAllowedMethods() []string { return c.AllowedMethods }

// GetAllowedHeaders returns the allowed headers for CORS.
func (c CORSConfig) GetAllowedHeaders() []string { return c.AllowedHeaders }

// GetMaxAge returns the max age for CORS preflight cache.
func (c CORSConfig) GetMaxAge() int { return c.MaxAge }

var _ middleware.CORSConfig = CORSConfig{}

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}
