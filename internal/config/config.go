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
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the bounty-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	DepositEventQueue           string `mapstructure:"DEPOSIT_EVENT_QUEUE"`
	JWTSecret                   string `mapstructure:"JWT_SECRET"`
	PixAPIBaseURL               string `mapstructure:"PIX_API_BASE_URL"`
	PixAPIKey                   string `mapstructure:"PIX_API_KEY"`
	PixWebhookSecret            string `mapstructure:"PIX_WEBHOOK_SECRET"`
	WalletAPIBaseURL            string `mapstructure:"WALLET_API_BASE_URL"`
	WalletAPIKey                string `mapstructure:"WALLET_API_KEY"`
	RateAPIBaseURL              string `mapstructure:"RATE_API_BASE_URL"`
	AdminUserIDs                string `mapstructure:"ADMIN_USER_IDS"`
	PixProcessingFeeCents       int64  `mapstructure:"PIX_PROCESSING_FEE_CENTS"`
	LargeContributionCents      int64  `mapstructure:"LARGE_CONTRIBUTION_THRESHOLD_CENTS"`
	WalletIndexOffset           int64  `mapstructure:"WALLET_INDEX_OFFSET"`
	AggregateRefreshSchedule    string `mapstructure:"AGGREGATE_REFRESH_SCHEDULE"`
	ModerationSessionTTLSeconds int    `mapstructure:"MODERATION_SESSION_TTL_SECONDS"`
	ModerationSessionPrefix     string `mapstructure:"MODERATION_SESSION_PREFIX"`
}

// AdminIDs returns the configured admin user ids as a slice, skipping blanks.
func (c Config) AdminIDs() []string {
	parts := strings.Split(c.AdminUserIDs, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
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
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("DEPOSIT_EVENT_QUEUE", "bounty_service.deposit_detections")
	viper.SetDefault("PIX_PROCESSING_FEE_CENTS", 99)
	viper.SetDefault("LARGE_CONTRIBUTION_THRESHOLD_CENTS", 5000)
	viper.SetDefault("WALLET_INDEX_OFFSET", 10000)
	viper.SetDefault("AGGREGATE_REFRESH_SCHEDULE", "*/5 * * * *")
	viper.SetDefault("MODERATION_SESSION_TTL_SECONDS", 300)
	viper.SetDefault("MODERATION_SESSION_PREFIX", "bounty:modsession")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BOUNTY_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("DEPOSIT_EVENT_QUEUE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("PIX_API_BASE_URL")
	_ = viper.BindEnv("PIX_API_KEY")
	_ = viper.BindEnv("PIX_WEBHOOK_SECRET")
	_ = viper.BindEnv("WALLET_API_BASE_URL")
	_ = viper.BindEnv("WALLET_API_KEY")
	_ = viper.BindEnv("RATE_API_BASE_URL")
	_ = viper.BindEnv("ADMIN_USER_IDS")
	_ = viper.BindEnv("PIX_PROCESSING_FEE_CENTS")
	_ = viper.BindEnv("PIX_PROCESSING_FEE")
	_ = viper.BindEnv("LARGE_CONTRIBUTION_THRESHOLD_CENTS")
	_ = viper.BindEnv("LARGE_CONTRIBUTION_THRESHOLD")
	_ = viper.BindEnv("WALLET_INDEX_OFFSET")
	_ = viper.BindEnv("AGGREGATE_REFRESH_SCHEDULE")
	_ = viper.BindEnv("MODERATION_SESSION_TTL_SECONDS")
	_ = viper.BindEnv("MODERATION_SESSION_PREFIX")

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

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.AdminUserIDs = strings.TrimSpace(config.AdminUserIDs)

	// Allow specifying the PIX fee in whole currency units via PIX_PROCESSING_FEE.
	if viper.IsSet("PIX_PROCESSING_FEE") {
		feeStr := strings.TrimSpace(viper.GetString("PIX_PROCESSING_FEE"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid PIX_PROCESSING_FEE\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.PixProcessingFeeCents = int64(math.Round(feeValue * 100))
			}
		}
	}

	if config.PixProcessingFeeCents < 0 {
		log.Printf("level=warn component=config msg=\"negative pix processing fee configured; coercing to zero\" fee_cents=%d", config.PixProcessingFeeCents)
		config.PixProcessingFeeCents = 0
	}

	// Allow specifying the large-contribution threshold in whole currency units.
	if viper.IsSet("LARGE_CONTRIBUTION_THRESHOLD") {
		thresholdStr := strings.TrimSpace(viper.GetString("LARGE_CONTRIBUTION_THRESHOLD"))
		if thresholdStr != "" {
			thresholdValue, parseErr := strconv.ParseFloat(thresholdStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid LARGE_CONTRIBUTION_THRESHOLD\" value=%q err=%v", thresholdStr, parseErr)
			} else {
				config.LargeContributionCents = int64(math.Round(thresholdValue * 100))
			}
		}
	}

	if config.LargeContributionCents < 0 {
		log.Printf("level=warn component=config msg=\"negative large-contribution threshold configured; coercing to zero\" threshold_cents=%d", config.LargeContributionCents)
		config.LargeContributionCents = 0
	}

	if config.WalletIndexOffset < 0 {
		log.Printf("level=warn component=config msg=\"negative wallet index offset configured; coercing to zero\" offset=%d", config.WalletIndexOffset)
		config.WalletIndexOffset = 0
	}

	if config.ModerationSessionTTLSeconds <= 0 {
		config.ModerationSessionTTLSeconds = 300
	}
	if strings.TrimSpace(config.AggregateRefreshSchedule) == "" {
		config.AggregateRefreshSchedule = "*/5 * * * *"
	}

	return
}
