/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables (with an
 * optional .env file for local development), providing a centralized and
 * straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	PaymentEventExchange string `mapstructure:"PAYMENT_EVENT_EXCHANGE"`
	PaystackSecret       string `mapstructure:"PAYSTACK_WEBHOOK_SECRET"`
	IntaSendSecret       string `mapstructure:"INTASEND_WEBHOOK_SECRET"`
	SupabaseJWTSecret    string `mapstructure:"SUPABASE_JWT_SECRET"`
	MobileDeepLinkScheme string `mapstructure:"MOBILE_DEEPLINK_SCHEME"`
	DedupKeyPrefix       string `mapstructure:"WEBHOOK_DEDUP_PREFIX"`
	DedupTTLMinutes      int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "payment_events")
	viper.SetDefault("MOBILE_DEEPLINK_SCHEME", "konserve://")
	viper.SetDefault("WEBHOOK_DEDUP_PREFIX", "konserve:webhook_dedup")
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYSTACK_WEBHOOK_SECRET")
	_ = viper.BindEnv("INTASEND_WEBHOOK_SECRET")
	_ = viper.BindEnv("SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("MOBILE_DEEPLINK_SCHEME")
	_ = viper.BindEnv("WEBHOOK_DEDUP_PREFIX")
	_ = viper.BindEnv("WEBHOOK_DEDUP_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Hosting platforms commonly inject PORT; prefer it when present.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.PaystackSecret = strings.TrimSpace(config.PaystackSecret)
	config.IntaSendSecret = strings.TrimSpace(config.IntaSendSecret)

	// The deep-link scheme must end with "://" so handlers can append paths
	// directly; accept a bare scheme name for convenience.
	config.MobileDeepLinkScheme = strings.TrimSpace(config.MobileDeepLinkScheme)
	if config.MobileDeepLinkScheme == "" {
		config.MobileDeepLinkScheme = "konserve://"
	}
	if !strings.HasSuffix(config.MobileDeepLinkScheme, "://") {
		config.MobileDeepLinkScheme = strings.TrimSuffix(config.MobileDeepLinkScheme, ":") + "://"
	}

	if config.DedupTTLMinutes <= 0 {
		config.DedupTTLMinutes = 60
	}

	return
}
