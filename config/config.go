package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Database configuration
	DBDriver string
	DBDSN    string

	// Redis configuration, empty disables the cache, rate limiter and bookable set
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Secrets
	JWTSecret string
	JWTTTL    time.Duration
	AppSecret string

	// Accounts
	OTPTTL time.Duration

	// Mail
	MailFromName    string
	MailFromAddress string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Uploads
	UploadMaxBytes int64

	// Rate limiting
	RateLimitPerMinute int

	// Caching
	CategoryCacheTTL time.Duration

	// Notifications
	NotifyTimeout time.Duration

	// Monitoring
	EnableMetrics bool
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Database
		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "ticketing.db"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Secrets
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", "24h"),
		AppSecret: getEnv("APP_SECRET", ""),

		// Accounts
		OTPTTL: getEnvAsDuration("OTP_TTL", "10m"),

		// Mail
		MailFromName:    getEnv("MAIL_FROM_NAME", "Ticketing"),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", "no-reply@example.com"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		// Uploads
		UploadMaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Caching
		CategoryCacheTTL: getEnvAsDuration("CATEGORY_CACHE_TTL", "10m"),

		// Notifications
		NotifyTimeout: getEnvAsDuration("NOTIFY_TIMEOUT", "15s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

// PubNubEnabled reports whether realtime push is configured.
func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
