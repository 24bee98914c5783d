// Package config loads service settings from environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
	Issuer string
}

// KafkaConfig holds broker settings. An empty broker list disables Kafka.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// StripeConfig holds payment processor settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	FrontendURL   string
}

// MailConfig holds SMTP settings. An empty host disables email delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// FirebaseConfig holds push delivery settings. An empty credentials path disables push.
type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

// RedisConfig holds the rate limiter store settings. An empty address selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load creates a viper instance reading <PREFIX>_* environment variables, unprefixed shared
// variables and an optional config.yaml in the working directory or ./config.
func Load(prefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, prefix)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper, prefix string) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault(prefix+"_SERVICE_PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault(prefix+"_DB_NAME", "reigna_booking")
	v.SetDefault("JWT_ISSUER", "reigna-care")
	v.SetDefault("KAFKA_GROUP_PREFIX", "reigna-")
	v.SetDefault("STRIPE_CURRENCY", "gbp")
	v.SetDefault("FRONTEND_URL", "https://example.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "Reigna Care <no-reply@reignacare.co.uk>")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("SIDE_EFFECT_TIMEOUT", "15s")
}

// GetServicePort returns the listen address for the prefixed port key, e.g. ":8080".
func GetServicePort(v *viper.Viper, prefix, key string) string {
	port := v.GetString(prefix + "_" + key)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// GetAppEnv returns the deployment environment name.
func GetAppEnv(v *viper.Viper) string {
	return v.GetString("APP_ENV")
}

// LoadDatabaseConfig reads database settings; the database name key is service specific.
func LoadDatabaseConfig(v *viper.Viper, prefix, dbNameKey string) DatabaseConfig {
	return DatabaseConfig{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASSWORD"),
		DBName:   v.GetString(prefix + "_" + dbNameKey),
		SSLMode:  v.GetString("DB_SSLMODE"),
	}
}

// LoadJWTConfig reads token verification settings.
func LoadJWTConfig(v *viper.Viper) JWTConfig {
	return JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}
}

// LoadKafkaConfig reads the comma separated KAFKA_BROKERS list.
func LoadKafkaConfig(v *viper.Viper) KafkaConfig {
	var brokers []string
	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return KafkaConfig{
		Brokers:     brokers,
		GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
	}
}

// LoadStripeConfig reads payment processor settings.
func LoadStripeConfig(v *viper.Viper) StripeConfig {
	return StripeConfig{
		SecretKey:     v.GetString("STRIPE_SECRET"),
		WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:      strings.ToLower(v.GetString("STRIPE_CURRENCY")),
		FrontendURL:   strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
	}
}

// LoadMailConfig reads SMTP settings.
func LoadMailConfig(v *viper.Viper) MailConfig {
	return MailConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("MAIL_FROM"),
	}
}

// LoadFirebaseConfig reads push delivery settings.
func LoadFirebaseConfig(v *viper.Viper) FirebaseConfig {
	return FirebaseConfig{
		CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
	}
}

// LoadRedisConfig reads rate limiter store settings.
func LoadRedisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("REDIS_ADDR"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}
}

// GetDuration reads a duration key, falling back when it is unset or malformed.
func GetDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}
