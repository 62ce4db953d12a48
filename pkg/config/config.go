package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Analysis   AnalysisConfig
	Cache      CacheConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
	Neo4j      Neo4jConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
	Entities   EntitiesConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	// AllowOrigins is passed to the CORS middleware.
	AllowOrigins string
}

type AnalysisConfig struct {
	BaseURL     string
	TimeoutSec  int
	MinArticles int
	MaxPairs    int
	Breaker     BreakerConfig
}

type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	TimeoutSec       int
}

type CacheConfig struct {
	// Backend is memory, redis or sqlite.
	Backend string
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type SQLiteConfig struct {
	Path string
}

type Neo4jConfig struct {
	Enabled    bool
	URI        string
	Username   string
	Password   string
	Database   string
	TimeoutSec int
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type ValidationConfig struct {
	MaxTargets      int
	MaxTargetLength int
}

type EntitiesConfig struct {
	CatalogPath string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// Load reads config.yaml from path when given, otherwise from the usual
// search locations. DASHBOARD_* environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dashboard")
	}

	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Analysis.BaseURL == "" {
		return errors.New("analysis.baseURL is required")
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheSQLite:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Validation.MaxTargets <= 0 || c.Validation.MaxTargetLength <= 0 {
		return errors.New("validation limits must be positive")
	}
	return nil
}

func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

func (b BreakerConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSec) * time.Second
}

func (n Neo4jConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 150)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowOrigins", "*")

	v.SetDefault("analysis.baseURL", "http://localhost:5000")
	v.SetDefault("analysis.timeoutSec", 120)
	v.SetDefault("analysis.minArticles", 1)
	v.SetDefault("analysis.maxPairs", 50)
	v.SetDefault("analysis.breaker.failureThreshold", 5)
	v.SetDefault("analysis.breaker.successThreshold", 2)
	v.SetDefault("analysis.breaker.timeoutSec", 30)

	v.SetDefault("cache.backend", CacheMemory)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "dashboard:")

	v.SetDefault("sqlite.path", "./data/dashboard.db")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.timeoutSec", 10)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requestsPerSecond", 2.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("validation.maxTargets", 20)
	v.SetDefault("validation.maxTargetLength", 200)

	v.SetDefault("entities.catalogPath", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
