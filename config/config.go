package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Realtime RealtimeConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	Algorithm          string
	AccessTokenMinutes int
	RefreshTokenDays   int
}

// RealtimeConfig carries the environment knobs §6 calls for: ping
// interval, max missed pongs, rate-limit parameters, offline-queue cap.
type RealtimeConfig struct {
	PingInterval     time.Duration
	MaxMissedPongs   int
	RateLimitMaxMsgs int64
	RateLimitWindow  time.Duration
	OfflineQueueCap  int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		redisDB = 0
	}

	accessMinutes, err := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))
	if err != nil {
		accessMinutes = 15
	}

	refreshDays, err := strconv.Atoi(getEnv("REFRESH_TOKEN_DAYS", "30"))
	if err != nil {
		refreshDays = 30
	}

	pingSeconds, err := strconv.Atoi(getEnv("PING_INTERVAL_SECONDS", "25"))
	if err != nil {
		pingSeconds = 25
	}

	maxMissed, err := strconv.Atoi(getEnv("MAX_MISSED_PONGS", "3"))
	if err != nil {
		maxMissed = 3
	}

	rateMax, err := strconv.ParseInt(getEnv("RATE_LIMIT_MAX_MESSAGES", "5"), 10, 64)
	if err != nil {
		rateMax = 5
	}

	rateWindowSeconds, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "10"))
	if err != nil {
		rateWindowSeconds = 10
	}

	offlineCap, err := strconv.ParseInt(getEnv("OFFLINE_QUEUE_CAP", "300"), 10, 64)
	if err != nil {
		offlineCap = 300
	}

	origins := strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "chatcore"),
			Password: getEnv("DB_PASSWORD", "chatcore_password"),
			DBName:   getEnv("DB_NAME", "chatcore_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "change-this-secret-key"),
			Algorithm:          getEnv("JWT_ALGORITHM", "HS256"),
			AccessTokenMinutes: accessMinutes,
			RefreshTokenDays:   refreshDays,
		},
		Realtime: RealtimeConfig{
			PingInterval:     time.Duration(pingSeconds) * time.Second,
			MaxMissedPongs:   maxMissed,
			RateLimitMaxMsgs: rateMax,
			RateLimitWindow:  time.Duration(rateWindowSeconds) * time.Second,
			OfflineQueueCap:  offlineCap,
		},
		CORS: CORSConfig{
			AllowedOrigins: origins,
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "change-this-secret-key" && cfg.Server.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// AccessTokenTTL returns the access-token lifetime as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTokenDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
