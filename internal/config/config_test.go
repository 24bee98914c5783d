package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "reigna_booking", cfg.DBConfig.DBName)
	assert.Equal(t, "300-M", cfg.RateLimit)
	assert.Equal(t, 15*time.Second, cfg.SideEffectTimeout)
	assert.Equal(t, "gbp", cfg.StripeConfig.Currency)
	assert.False(t, cfg.KafkaConfig.Enabled())
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("BOOKING_SERVICE_PORT", "9090")
	t.Setenv("BOOKING_DB_NAME", "bookings_prod")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CORS_ORIGINS", "https://app.reignacare.co.uk,,https://admin.reignacare.co.uk")
	t.Setenv("SIDE_EFFECT_TIMEOUT", "3s")
	t.Setenv("FRONTEND_URL", "https://app.reignacare.co.uk/")
	t.Setenv("STRIPE_CURRENCY", "GBP")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "bookings_prod", cfg.DBConfig.DBName)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, []string{"https://app.reignacare.co.uk", "https://admin.reignacare.co.uk"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.SideEffectTimeout)
	assert.Equal(t, "https://app.reignacare.co.uk", cfg.StripeConfig.FrontendURL)
	assert.Equal(t, "gbp", cfg.StripeConfig.Currency)
}
