package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const environmentProduction = "production"

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Upstream services the front door forwards to
	Upstream UpstreamConfig

	// Session cookie configuration
	Session SessionConfig

	// Access gate configuration
	Gate GateConfig

	// CORS Configuration
	CORS CORSConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address     string
	Environment string // development, production
}

// UpstreamConfig holds the REST API and UI locations
type UpstreamConfig struct {
	APIURL      string
	APITimeout  time.Duration
	FrontendURL string // empty disables UI forwarding
}

// SessionConfig holds session cookie attributes
type SessionConfig struct {
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
}

// GateConfig holds access gate configuration
type GateConfig struct {
	PolicyFile string // empty uses the built-in route table
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == environmentProduction
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	environment := strings.ToLower(getEnvOr("APP_ENV", "development"))

	apiURL := getEnvOr("API_URL", "http://localhost:8000")
	if err := validateURL("API_URL", apiURL); err != nil {
		return nil, err
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL != "" {
		if err := validateURL("FRONTEND_URL", frontendURL); err != nil {
			return nil, err
		}
	}

	apiTimeout, err := getDurationOr("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	// Matches the 7 day cookie lifetime the login page has always used
	maxAge, err := getDurationOr("SESSION_MAX_AGE", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	httpOnly, err := getBoolOr("SESSION_HTTP_ONLY", false)
	if err != nil {
		return nil, err
	}

	origins := splitList(getEnvOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	if len(origins) == 0 {
		return nil, fmt.Errorf("invalid CORS_ALLOWED_ORIGINS: no origins listed")
	}

	// Logging configuration - defaults suitable for production
	logLevel := getEnvOr("LOG_LEVEL", "info")
	logFormat := getEnvOr("LOG_FORMAT", "json")

	return &Config{
		Server: ServerConfig{
			Address:     getEnvOr("LISTEN_ADDR", ":8080"),
			Environment: environment,
		},
		Upstream: UpstreamConfig{
			APIURL:      strings.TrimRight(apiURL, "/"),
			APITimeout:  apiTimeout,
			FrontendURL: strings.TrimRight(frontendURL, "/"),
		},
		Session: SessionConfig{
			MaxAge:   maxAge,
			Secure:   environment == environmentProduction,
			HTTPOnly: httpOnly,
		},
		Gate: GateConfig{
			PolicyFile: os.Getenv("GATE_POLICY_FILE"),
		},
		CORS: CORSConfig{
			AllowedOrigins: origins,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}

func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOr(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getBoolOr(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func validateURL(key, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", key)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", key)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
