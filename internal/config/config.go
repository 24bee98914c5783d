package config

import (
	"strings"
	"time"

	"github.com/reignacare/service-booking/internal/platform/config"
)

const prefix = "BOOKING"

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port              string
	AppEnv            string
	LogFile           string
	CORSOrigins       []string
	RateLimit         string
	SideEffectTimeout time.Duration
	DBConfig          config.DatabaseConfig
	JWTConfig         config.JWTConfig
	KafkaConfig       config.KafkaConfig
	StripeConfig      config.StripeConfig
	MailConfig        config.MailConfig
	FirebaseConfig    config.FirebaseConfig
	RedisConfig       config.RedisConfig
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load(prefix)
	if err != nil {
		return nil, err
	}

	return &ServiceConfig{
		Port:              config.GetServicePort(v, prefix, "SERVICE_PORT"),
		AppEnv:            config.GetAppEnv(v),
		LogFile:           v.GetString("LOG_FILE"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		RateLimit:         v.GetString("RATE_LIMIT"),
		SideEffectTimeout: config.GetDuration(v, "SIDE_EFFECT_TIMEOUT", 15*time.Second),
		DBConfig:          config.LoadDatabaseConfig(v, prefix, "DB_NAME"),
		JWTConfig:         config.LoadJWTConfig(v),
		KafkaConfig:       config.LoadKafkaConfig(v),
		StripeConfig:      config.LoadStripeConfig(v),
		MailConfig:        config.LoadMailConfig(v),
		FirebaseConfig:    config.LoadFirebaseConfig(v),
		RedisConfig:       config.LoadRedisConfig(v),
	}, nil
}

// IsDevelopment reports whether the service runs with development conveniences.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
