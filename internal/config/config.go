// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Provisioning modes.
const (
	ProvisioningIdempotentUpsert = "idempotent-upsert"
	ProvisioningStrictCreate     = "strict-create"
)

// Missing-target policies for moderation operations.
const (
	MissingTargetSucceed = "succeed"
	MissingTargetReport  = "report"
)

// Media storage backends.
const (
	MediaBackendDisk = "disk"
	MediaBackendOSS  = "oss"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                     string  `mapstructure:"JWT_SECRET"`
	SessionTTLHours               int     `mapstructure:"SESSION_TTL_HOURS"`
	Port                          string  `mapstructure:"PORT"`
	DBDriver                      string  `mapstructure:"DB_DRIVER"`
	DBHost                        string  `mapstructure:"DB_HOST"`
	DBPort                        string  `mapstructure:"DB_PORT"`
	DBUser                        string  `mapstructure:"DB_USER"`
	DBPassword                    string  `mapstructure:"DB_PASSWORD"`
	DBName                        string  `mapstructure:"DB_NAME"`
	DBSSLMode                     string  `mapstructure:"DB_SSLMODE"`
	SQLitePath                    string  `mapstructure:"SQLITE_PATH"`
	DBSchemaMode                  string  `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool    `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int     `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string  `mapstructure:"REDIS_URL"`
	AllowedOrigins                string  `mapstructure:"ALLOWED_ORIGINS"`
	Env                           string  `mapstructure:"APP_ENV"`
	ProvisioningMode              string  `mapstructure:"PROVISIONING_MODE"`
	HidePostMissing               string  `mapstructure:"MODERATION_HIDE_POST_MISSING"`
	HideCommentMissing            string  `mapstructure:"MODERATION_HIDE_COMMENT_MISSING"`
	LenientCommentTarget          bool    `mapstructure:"LENIENT_COMMENT_TARGET"`
	MediaBackend                  string  `mapstructure:"MEDIA_BACKEND"`
	MediaDir                      string  `mapstructure:"MEDIA_DIR"`
	MediaMaxUploadMB              int     `mapstructure:"MEDIA_MAX_UPLOAD_MB"`
	OSSEndpoint                   string  `mapstructure:"OSS_ENDPOINT"`
	OSSAccessKeyID                string  `mapstructure:"OSS_ACCESS_KEY_ID"`
	OSSAccessKeySecret            string  `mapstructure:"OSS_ACCESS_KEY_SECRET"`
	OSSBucket                     string  `mapstructure:"OSS_BUCKET"`
	TracingEnabled                bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter               string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint                  string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio           float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	DevBootstrapRoot              bool    `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername               string  `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail                  string  `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword               string  `mapstructure:"DEV_ROOT_PASSWORD"`
	DevRootForceCredentials       bool    `mapstructure:"DEV_ROOT_FORCE_CREDENTIALS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; profile files are not.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "cloudysky")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "cloudysky.db")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("SESSION_TTL_HOURS", 24*7)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("PROVISIONING_MODE", ProvisioningIdempotentUpsert)
	viper.SetDefault("MODERATION_HIDE_POST_MISSING", MissingTargetSucceed)
	viper.SetDefault("MODERATION_HIDE_COMMENT_MISSING", MissingTargetSucceed)
	viper.SetDefault("LENIENT_COMMENT_TARGET", true)
	viper.SetDefault("MEDIA_BACKEND", MediaBackendDisk)
	viper.SetDefault("MEDIA_DIR", "media")
	viper.SetDefault("MEDIA_MAX_UPLOAD_MB", 10)
	viper.SetDefault("OSS_ENDPOINT", "")
	viper.SetDefault("OSS_ACCESS_KEY_ID", "")
	viper.SetDefault("OSS_ACCESS_KEY_SECRET", "")
	viper.SetDefault("OSS_BUCKET", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_USERNAME", "cloudysky_root")
	viper.SetDefault("DEV_ROOT_EMAIL", "root@cloudysky.local")
	viper.SetDefault("DEV_ROOT_PASSWORD", "")
	viper.SetDefault("DEV_ROOT_FORCE_CREDENTIALS", false)
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.ProvisioningMode = strings.ToLower(strings.TrimSpace(c.ProvisioningMode))
	c.HidePostMissing = strings.ToLower(strings.TrimSpace(c.HidePostMissing))
	c.HideCommentMissing = strings.ToLower(strings.TrimSpace(c.HideCommentMissing))
	c.MediaBackend = strings.ToLower(strings.TrimSpace(c.MediaBackend))
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.ProvisioningMode {
	case "", ProvisioningIdempotentUpsert, ProvisioningStrictCreate:
	default:
		return fmt.Errorf("unsupported PROVISIONING_MODE %q", c.ProvisioningMode)
	}

	for key, policy := range map[string]string{
		"MODERATION_HIDE_POST_MISSING":    c.HidePostMissing,
		"MODERATION_HIDE_COMMENT_MISSING": c.HideCommentMissing,
	} {
		switch policy {
		case "", MissingTargetSucceed, MissingTargetReport:
		default:
			return fmt.Errorf("unsupported %s %q", key, policy)
		}
	}

	switch c.MediaBackend {
	case "", MediaBackendDisk:
	case MediaBackendOSS:
		if c.OSSEndpoint == "" || c.OSSBucket == "" {
			return errors.New("OSS_ENDPOINT and OSS_BUCKET are required when MEDIA_BACKEND=oss")
		}
	default:
		return fmt.Errorf("unsupported MEDIA_BACKEND %q", c.MediaBackend)
	}

	if c.DBConnMaxLifetimeMinutes < 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must not be negative")
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER=sqlite is not supported in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
