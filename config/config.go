package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string
	ServerURL   string

	Auth0Domain   string
	Auth0Audience string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TelegramBotToken string
	TelegramAPIURL   string
	DefaultChatID    int64

	FiveSimAPIKey  string
	FiveSimBaseURL string

	PaystackSecretKey string
	PaystackPublicKey string
	PaystackBaseURL   string

	PrimeAPIKey string

	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	PollInterval       time.Duration
	PollMaxAttempts    int
	PurchaseHoldAmount float64
	CancelRefundRatio  float64
	MessageLogCapacity int
	CorrelationTTL     time.Duration
	RateLimitPerMinute int
	AllowedOrigins     []string
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// Hosted deployments set variables directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	port := getEnv("PORT", "8080")
	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        port,
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServerURL:   getEnv("SERVER_URL", "http://localhost:"+port),

		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		DefaultChatID:    int64(getEnvInt("DEFAULT_CHAT_ID", 0)),

		FiveSimAPIKey:  getEnv("FIVESIM_API_KEY", ""),
		FiveSimBaseURL: getEnv("FIVESIM_BASE_URL", "https://5sim.net/v1"),

		PaystackSecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackPublicKey: getEnv("PAYSTACK_PUBLIC_KEY", ""),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),

		PrimeAPIKey: getEnv("PRIME_API_KEY", ""),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		PollInterval:       time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 120),
		PurchaseHoldAmount: getEnvFloat("PURCHASE_HOLD_AMOUNT", 1.0),
		CancelRefundRatio:  getEnvFloat("CANCEL_REFUND_RATIO", 0.9),
		MessageLogCapacity: getEnvInt("MESSAGE_LOG_CAPACITY", 100),
		CorrelationTTL:     time.Duration(getEnvInt("CORRELATION_TTL_HOURS", 72)) * time.Hour,
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	current = config
	return config, nil
}

// GetConfig returns the configuration produced by the last successful Load
func GetConfig() *Config {
	return current
}

// SetConfig replaces the current configuration (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be > 0")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be > 0")
	}
	if c.MessageLogCapacity <= 0 {
		return fmt.Errorf("MESSAGE_LOG_CAPACITY must be > 0")
	}
	if c.PurchaseHoldAmount <= 0 {
		return fmt.Errorf("PURCHASE_HOLD_AMOUNT must be > 0")
	}
	if c.CancelRefundRatio < 0 || c.CancelRefundRatio > 1 {
		return fmt.Errorf("CANCEL_REFUND_RATIO must be between 0 and 1")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// RedisEnabled reports whether a Redis address was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// TelegramEnabled reports whether the bot token and operator chat are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// S3Enabled reports whether payment payload archiving is configured
func (c *Config) S3Enabled() bool {
	return c.AWSS3Bucket != ""
}

// TelegramBotID is the bot's own user id, the numeric prefix of its token
func (c *Config) TelegramBotID() int64 {
	prefix, _, found := strings.Cut(c.TelegramBotToken, ":")
	if !found {
		return 0
	}
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// BotWebhookPath is the route the Telegram webhook posts updates to
func (c *Config) BotWebhookPath() string {
	return "/bot" + c.TelegramBotToken
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return i
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid number for %s=%q, using default %v", key, v, defaultValue)
		return defaultValue
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
