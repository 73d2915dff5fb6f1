package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string
	StoreDriver string
	PostgresDSN string
	MongoURI    string
	MongoDB     string

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string

	LogLevel  string
	LogFormat string

	AdminName     string
	AdminEmail    string
	AdminPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads the environment and validates the result. JWT_SECRET is
// required and must be at least 16 bytes.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		MongoURI:       getenv("MONGO_URI", ""),
		MongoDB:        getenv("MONGO_DB", "project_tracker"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "json")),
		AdminName:      getenv("ADMIN_NAME", "Administrator"),
		AdminEmail:     getenv("ADMIN_EMAIL", ""),
		AdminPassword:  getenv("ADMIN_PASSWORD", ""),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "api-docs"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
	}

	var err error
	if cfg.JWTTTL, err = getenvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getenvInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getenvInt("RATE_LIMIT_REQUESTS", 20); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for store driver %q", c.StoreDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for store driver %q", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, mongo or memory)", c.StoreDriver)
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be set and at least 16 bytes long")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// SeedAdmin reports whether an admin account should be ensured at startup.
func (c *Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// String returns a representation safe for logs; secrets are masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %s, Store: %s, JWT: *** (ttl %s), RateLimit: %d/%s, Minio: %q}",
		c.Port, c.StoreDriver, c.JWTTTL, c.RateLimitRequests, c.RateLimitWindow, c.MinioEndpoint)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
