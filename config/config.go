package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/glowmart/storefront-bff/errors"
)

// ServerConfig holds all configuration for the service. Tags use
// mapstructure for Viper unmarshalling; values come from environment
// variables, an optional config file, and defaults.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // optional; empty disables the distributed renewal lock
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Session JWTs issued to the frontend after login.
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	// Shopify integration.
	ShopifyShopName        string `mapstructure:"SHOPIFY_SHOP_NAME"`
	ShopifyAPIVersion      string `mapstructure:"SHOPIFY_API_VERSION"`
	ShopifyStorefrontToken string `mapstructure:"SHOPIFY_STOREFRONT_TOKEN"`
	ShopifyAdminToken      string `mapstructure:"SHOPIFY_ADMIN_TOKEN"`

	// ShopifyCustomerPassword is the fixed fallback password used for every
	// commerce customer account created on behalf of social-login users.
	ShopifyCustomerPassword string `mapstructure:"SHOPIFY_CUSTOMER_PASSWORD"`

	// TokenExpiryBuffer is the window before expiresAt within which a
	// cached commerce token is already treated as expired.
	TokenExpiryBuffer time.Duration `mapstructure:"TOKEN_EXPIRY_BUFFER"`

	// Social provider credentials. CallbackBaseURL is the externally
	// reachable base for OAuth redirect URIs, e.g.
	// "https://api.glowmart.com/auth"; the provider name and "/callback"
	// are appended.
	CallbackBaseURL    string `mapstructure:"CALLBACK_BASE_URL"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	AppleClientID      string `mapstructure:"APPLE_CLIENT_ID"`
	AppleClientSecret  string `mapstructure:"APPLE_CLIENT_SECRET"`
	KakaoClientID      string `mapstructure:"KAKAO_CLIENT_ID"`
	KakaoClientSecret  string `mapstructure:"KAKAO_CLIENT_SECRET"`
}

// LoadConfig reads configuration from file, environment variables and
// defaults, then validates the required secrets. Missing secrets are a
// ConfigurationError: fatal at startup, never silently defaulted.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/storefront-bff/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/storefront_dev")
	v.SetDefault("MONGO_DB_NAME", "storefront_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "storefront-bff")
	v.SetDefault("ACCESS_TOKEN_TTL", 72*time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 168*time.Hour)
	v.SetDefault("SHOPIFY_API_VERSION", "2025-04")
	v.SetDefault("TOKEN_EXPIRY_BUFFER", 5*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	for key, val := range map[string]string{
		"JWT_SECRET":                cfg.JWTSecret,
		"SHOPIFY_SHOP_NAME":         cfg.ShopifyShopName,
		"SHOPIFY_STOREFRONT_TOKEN":  cfg.ShopifyStorefrontToken,
		"SHOPIFY_ADMIN_TOKEN":       cfg.ShopifyAdminToken,
		"SHOPIFY_CUSTOMER_PASSWORD": cfg.ShopifyCustomerPassword,
	} {
		if val == "" {
			return nil, apperrors.NewConfigurationError(key)
		}
	}

	return &cfg, nil
}
