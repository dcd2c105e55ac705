package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the GeoHarvest tool server.
type Config struct {
	Server   ServerConfig
	AppEEARS AppEEARSConfig
	Download DownloadConfig
	Elastic  ElasticConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Tools    ToolsConfig
	Mirror   MirrorConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type AppEEARSConfig struct {
	BaseURL         string
	Username        string
	Password        string
	Timeout         time.Duration
	ProductCacheTTL time.Duration
}

type DownloadConfig struct {
	Path string
}

type ElasticConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Address returns the HTTP endpoint of the search backend.
func (c ElasticConfig) Address() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type ToolsConfig struct {
	APIKeyHashes      []string
	RateLimitPerMin   int
	AllowUnauthorized bool
}

// MirrorConfig configures the optional S3 copy of downloaded bundles.
// An empty Bucket disables mirroring.
type MirrorConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Prefix    string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := read()

	if err := cfg.validateAppEEARS(); err != nil {
		return nil, err
	}
	if err := cfg.validateServer(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClient reads the same environment as Load but only validates what a
// direct AppEEARS client needs. Used by the operator CLI.
func LoadClient() (*Config, error) {
	cfg := read()
	if err := cfg.validateAppEEARS(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() *Config {
	env := envString("GEOHARVEST_ENV", "development")
	return &Config{
		Server: ServerConfig{
			Port: envInt("GEOHARVEST_PORT", 8080),
			Env:  env,
		},
		AppEEARS: AppEEARSConfig{
			BaseURL:         envString("APPEEARS_API_URL", "https://appeears.earthdatacloud.nasa.gov/api"),
			Username:        os.Getenv("APPEEARS_USERNAME"),
			Password:        os.Getenv("APPEEARS_PASSWORD"),
			Timeout:         envDuration("APPEEARS_TIMEOUT", 60*time.Second),
			ProductCacheTTL: envDuration("PRODUCT_CACHE_TTL", 6*time.Hour),
		},
		Download: DownloadConfig{
			Path: envString("DOWNLOAD_PATH", "/tmp"),
		},
		Elastic: ElasticConfig{
			Host:     envString("ELASTIC_HOST", "localhost"),
			Port:     envInt("ELASTIC_PORT", 9200),
			Username: envString("ELASTIC_USERNAME", "elastic"),
			Password: os.Getenv("ELASTIC_PASSWORD"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Tools: ToolsConfig{
			APIKeyHashes:      envList("TOOLS_API_KEY_HASHES", nil),
			RateLimitPerMin:   envInt("TOOLS_RATE_LIMIT_PER_MIN", 60),
			AllowUnauthorized: env == "development",
		},
		Mirror: MirrorConfig{
			Bucket:    os.Getenv("BUNDLE_S3_BUCKET"),
			Region:    envString("BUNDLE_S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("BUNDLE_S3_ENDPOINT"),
			PathStyle: envBool("BUNDLE_S3_PATH_STYLE", false),
			Prefix:    envString("BUNDLE_S3_PREFIX", "bundles"),
		},
	}
}

func (c *Config) validateAppEEARS() error {
	if c.AppEEARS.BaseURL == "" {
		return fmt.Errorf("APPEEARS_API_URL is required")
	}
	if !strings.HasPrefix(c.AppEEARS.BaseURL, "http://") && !strings.HasPrefix(c.AppEEARS.BaseURL, "https://") {
		return fmt.Errorf("APPEEARS_API_URL must start with http:// or https://, got %q", c.AppEEARS.BaseURL)
	}
	if c.AppEEARS.Username == "" {
		return fmt.Errorf("APPEEARS_USERNAME is required")
	}
	if c.AppEEARS.Password == "" {
		return fmt.Errorf("APPEEARS_PASSWORD is required")
	}
	if c.Download.Path == "" {
		return fmt.Errorf("DOWNLOAD_PATH must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Elastic.Port <= 0 || c.Elastic.Port > 65535 {
		return fmt.Errorf("ELASTIC_PORT must be a valid port, got %d", c.Elastic.Port)
	}

	if len(c.Tools.APIKeyHashes) == 0 && !c.Tools.AllowUnauthorized {
		return fmt.Errorf("TOOLS_API_KEY_HASHES is required when GEOHARVEST_ENV is %q", c.Server.Env)
	}
	for _, h := range c.Tools.APIKeyHashes {
		if !strings.HasPrefix(h, "$2") {
			return fmt.Errorf("TOOLS_API_KEY_HASHES must contain bcrypt hashes")
		}
	}

	if c.Mirror.Bucket != "" && c.Mirror.Region == "" {
		return fmt.Errorf("BUNDLE_S3_REGION is required when BUNDLE_S3_BUCKET is set")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
