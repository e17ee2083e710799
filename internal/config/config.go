/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payout-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	PayoutJobQueue           string `mapstructure:"PAYOUT_JOB_QUEUE"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	CreateRateLimitPerMinute int    `mapstructure:"PAYOUT_CREATE_RATE_LIMIT_PER_MINUTE"`
	EnqueueDelaySeconds      int    `mapstructure:"PAYOUT_ENQUEUE_DELAY_SECONDS"`
	WorkerCount              int    `mapstructure:"WORKER_COUNT"`
	WorkerQueueSize          int    `mapstructure:"WORKER_QUEUE_SIZE"`
	WorkerPrefetch           int    `mapstructure:"WORKER_PREFETCH"`
	RetryMaxAttempts         int    `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBaseDelaySeconds    int    `mapstructure:"RETRY_BASE_DELAY_SECONDS"`
	GatewayMinLatencyMS      int    `mapstructure:"GATEWAY_MIN_LATENCY_MS"`
	GatewayMaxLatencyMS      int    `mapstructure:"GATEWAY_MAX_LATENCY_MS"`
	GatewaySuccessPercent    int    `mapstructure:"GATEWAY_SUCCESS_PERCENT"`
	DBWaitTimeoutSeconds     int    `mapstructure:"DB_WAIT_TIMEOUT_SECONDS"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYOUT_JOB_QUEUE", "payout_service.process_payout")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payouts:rate_limit")
	viper.SetDefault("PAYOUT_CREATE_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("PAYOUT_ENQUEUE_DELAY_SECONDS", 5)
	viper.SetDefault("WORKER_COUNT", 4)
	viper.SetDefault("WORKER_QUEUE_SIZE", 64)
	viper.SetDefault("WORKER_PREFETCH", 8)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("RETRY_BASE_DELAY_SECONDS", 7)
	viper.SetDefault("GATEWAY_MIN_LATENCY_MS", 2000)
	viper.SetDefault("GATEWAY_MAX_LATENCY_MS", 5000)
	viper.SetDefault("GATEWAY_SUCCESS_PERCENT", 75)
	viper.SetDefault("DB_WAIT_TIMEOUT_SECONDS", 60)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYOUT_JOB_QUEUE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("PAYOUT_CREATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PAYOUT_ENQUEUE_DELAY_SECONDS")
	_ = viper.BindEnv("WORKER_COUNT")
	_ = viper.BindEnv("WORKER_QUEUE_SIZE")
	_ = viper.BindEnv("WORKER_PREFETCH")
	_ = viper.BindEnv("RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("RETRY_BASE_DELAY_SECONDS")
	_ = viper.BindEnv("GATEWAY_MIN_LATENCY_MS")
	_ = viper.BindEnv("GATEWAY_MAX_LATENCY_MS")
	_ = viper.BindEnv("GATEWAY_SUCCESS_PERCENT")
	_ = viper.BindEnv("DB_WAIT_TIMEOUT_SECONDS")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	normalize(&config)
	return
}

// normalize clamps obviously invalid values back to safe defaults.
func normalize(c *Config) {
	if c.EnqueueDelaySeconds < 0 {
		c.EnqueueDelaySeconds = 0
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.WorkerQueueSize <= 0 {
		c.WorkerQueueSize = 64
	}
	if c.RetryMaxAttempts < 0 {
		c.RetryMaxAttempts = 0
	}
	if c.RetryBaseDelaySeconds <= 0 {
		c.RetryBaseDelaySeconds = 7
	}
	if c.GatewayMinLatencyMS < 0 {
		c.GatewayMinLatencyMS = 0
	}
	if c.GatewayMaxLatencyMS < c.GatewayMinLatencyMS {
		c.GatewayMaxLatencyMS = c.GatewayMinLatencyMS
	}
	if c.GatewaySuccessPercent < 0 {
		c.GatewaySuccessPercent = 0
	}
	if c.GatewaySuccessPercent > 100 {
		c.GatewaySuccessPercent = 100
	}
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (c Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
