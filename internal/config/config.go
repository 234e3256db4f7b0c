package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/jub0bs/cors"
)

// Environment variables with defaults
type Config struct {
	Environment       string        `env:"ENVIRONMENT,default=dev"`
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=3000"`
	LogLevel          string        `env:"LOG_LEVEL,default=debug"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=45s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS,separator=|"`
	MaxAPIRequestSize int64         `env:"MAX_API_REQUEST_SIZE,default=65536"` // 64KB
	RateLimitRPS      int32         `env:"RATE_LIMIT_RPS,default=50"`
	RateLimitBurst    int32         `env:"RATE_LIMIT_BURST,default=20"`
	DefaultLanguage   string        `env:"DEFAULT_LANGUAGE,default=en"`

	// upstream API
	AbillioAPIURL    string        `env:"ABILLIO_API_URL,default=https://api-staging.abill.io"`
	AbillioAPIKey    string        `env:"ABILLIO_API_KEY"`
	AbillioAPISecret string        `env:"ABILLIO_API_SECRET"`
	AbillioTimeout   time.Duration `env:"ABILLIO_TIMEOUT,default=30s"`
}

const (
	ServerShutdownTimeout = 10 * time.Second
	CORSMaxAgeInSeconds   = 86400 // 24 hours

	// time allowed on top of ABILLIO_TIMEOUT for reading the request and writing the response
	RequestTimeoutMargin = 5 * time.Second
)

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"perf":    true,
	"prod":    true,
	"staging": true,
}

var validLanguages = map[string]bool{
	"en": true,
	"lv": true,
}

// NewConfig loads the configuration from the process environment.
//
// Missing abillio credentials are returned as an *abillio.Error of kind configuration so the
// caller sees the same error class the client would return.
func NewConfig() (*Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return NewConfigFromEnvSet(es)
}

// NewConfigFromEnvSet is NewConfig for an explicit set of variables (used by tests)
func NewConfigFromEnvSet(es env.EnvSet) (*Config, error) {
	var cfg Config

	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Credentials returns the upstream credentials for abillio.NewClient
func (c *Config) Credentials() abillio.Credentials {
	return abillio.Credentials{
		BaseURL:   c.AbillioAPIURL,
		APIKey:    c.AbillioAPIKey,
		APISecret: c.AbillioAPISecret,
	}
}

// AbillioDocsURL is the API documentation served by the configured abillio environment
func (c *Config) AbillioDocsURL() string {
	return strings.TrimRight(c.AbillioAPIURL, "/") + "/docs/api/"
}

// RequestTimeout bounds the handling of one request, including the upstream call
func (c *Config) RequestTimeout() time.Duration {
	return c.AbillioTimeout + RequestTimeoutMargin
}

func validateConfig(cfg *Config) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT '%s'. Valid environments: dev, test, perf, staging, prod", cfg.Environment)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", cfg.IdleTimeout)
	}
	if cfg.AbillioTimeout <= 0 {
		return fmt.Errorf("ABILLIO_TIMEOUT must be positive, got %v", cfg.AbillioTimeout)
	}
	if cfg.WriteTimeout <= cfg.RequestTimeout() {
		return fmt.Errorf("WRITE_TIMEOUT (%v) must be greater than ABILLIO_TIMEOUT plus %v (%v)", cfg.WriteTimeout, RequestTimeoutMargin, cfg.RequestTimeout())
	}

	if cfg.MaxAPIRequestSize < 1 {
		return fmt.Errorf("MAX_API_REQUEST_SIZE must be at least 1")
	}
	if cfg.RateLimitRPS < 1 || cfg.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be at least 1")
	}

	if !validLanguages[cfg.DefaultLanguage] {
		return fmt.Errorf("invalid DEFAULT_LANGUAGE '%s' (expects en or lv)", cfg.DefaultLanguage)
	}

	u, err := url.ParseRequestURI(cfg.AbillioAPIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("ABILLIO_API_URL is not a valid URL: %s", cfg.AbillioAPIURL)
	}
	if cfg.Environment == "prod" && u.Scheme != "https" {
		return fmt.Errorf("ABILLIO_API_URL must use https in production: %s", cfg.AbillioAPIURL)
	}

	// the signed client cannot work without these
	var missing []string
	if cfg.AbillioAPIKey == "" {
		missing = append(missing, "ABILLIO_API_KEY")
	}
	if cfg.AbillioAPISecret == "" {
		missing = append(missing, "ABILLIO_API_SECRET")
	}
	if len(missing) > 0 {
		return abillio.NewConfigurationError(strings.Join(missing, ", ") + " not set")
	}

	if cfg.Environment == "prod" || cfg.Environment == "staging" {
		if len(cfg.AllowedOrigins) == 0 {
			return fmt.Errorf("ALLOWED_ORIGINS must be set in %v", cfg.Environment)
		}
		if cfg.AllowedOrigins[0] == "*" {
			return fmt.Errorf("ALLOWED_ORIGINS must not be set to '*' in %v", cfg.Environment)
		}
	}

	// default to all origins when not in prod/staging
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return nil
}

// NewCORS creates the CORS middleware for the /api routes
func NewCORS(cfg *Config) (*cors.Middleware, error) {
	origins := make([]string, len(cfg.AllowedOrigins))
	for i, origin := range cfg.AllowedOrigins {
		origins[i] = strings.TrimSpace(origin)
	}

	corsConfig := cors.Config{
		Origins: origins,
		Methods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		RequestHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Requested-With",
		},
		MaxAgeInSeconds: CORSMaxAgeInSeconds,
	}

	middleware, err := cors.NewMiddleware(corsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create CORS middleware: %w", err)
	}
	return middleware, nil
}
