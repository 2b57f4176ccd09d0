package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Pricing  PricingConfig
	Matching MatchingConfig
	Payment  PaymentConfig
	Maps     MapsConfig
	AMQP     AMQPConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Driver   string // postgres, nrpostgres or pgx
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// PricingConfig holds fare and surge configuration. Amounts are whole
// currency units.
type PricingConfig struct {
	BaseFare        int64
	PerKm           int64
	PerMin          int64
	SurgeEnabled    bool
	SurgeRadiusKm   float64
	SurgeMultiplier float64 // max
}

// MatchingConfig holds driver matching configuration.
type MatchingConfig struct {
	RadiusKm      float64
	SweepBatch    int
	SweepInterval time.Duration
}

// PaymentConfig holds payment provider configuration.
type PaymentConfig struct {
	AppURL          string
	CallbackBaseURL string
	Currency        string
	CallbackSecret  string

	ClickMerchantID string
	ClickServiceID  string
	PaymeMerchantID string

	StripeSecretKey string
	StripeRateToUSD float64
}

// MapsConfig holds Google Maps configuration.
type MapsConfig struct {
	APIKey   string
	Language string
	Region   string
}

// AMQPConfig holds RabbitMQ configuration.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// RealtimeConfig holds websocket fan-out configuration.
type RealtimeConfig struct {
	RelayEnabled bool
	RelayChannel string
	SendBuffer   int
}

// Load loads configuration from environment variables.
func Load() *Config {
	appURL := getEnv("APP_URL", "http://localhost:3000")

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridecore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridecore"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Pricing: PricingConfig{
			BaseFare:        int64(getIntEnv("FARE_BASE", 5000)),
			PerKm:           int64(getIntEnv("FARE_PER_KM", 3000)),
			PerMin:          int64(getIntEnv("FARE_PER_MIN", 500)),
			SurgeEnabled:    getBoolEnv("SURGE_ENABLED", true),
			SurgeRadiusKm:   getFloatEnv("SURGE_RADIUS_KM", 5.0),
			SurgeMultiplier: getFloatEnv("SURGE_MAX_MULTIPLIER", 2.0),
		},
		Matching: MatchingConfig{
			RadiusKm:      getFloatEnv("MATCH_RADIUS_KM", 5.0),
			SweepBatch:    getIntEnv("MATCH_SWEEP_BATCH", 50),
			SweepInterval: getDurationEnv("MATCH_SWEEP_INTERVAL", 15*time.Second),
		},
		Payment: PaymentConfig{
			AppURL:          appURL,
			CallbackBaseURL: getEnv("PAYMENT_CALLBACK_BASE_URL", "http://localhost:8080"),
			Currency:        getEnv("PAYMENT_CURRENCY", "UZS"),
			CallbackSecret:  getEnv("PAYMENT_CALLBACK_SECRET", ""),
			ClickMerchantID: getEnv("CLICK_MERCHANT_ID", ""),
			ClickServiceID:  getEnv("CLICK_SERVICE_ID", ""),
			PaymeMerchantID: getEnv("PAYME_MERCHANT_ID", ""),
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			StripeRateToUSD: getFloatEnv("STRIPE_RATE_TO_USD", 12500),
		},
		Maps: MapsConfig{
			APIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			Language: getEnv("MAPS_LANGUAGE", "en"),
			Region:   getEnv("MAPS_REGION", "uz"),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "ride_events"),
		},
		Realtime: RealtimeConfig{
			RelayEnabled: getBoolEnv("REALTIME_RELAY_ENABLED", false),
			RelayChannel: getEnv("REALTIME_RELAY_CHANNEL", "ridecore:events"),
			SendBuffer:   getIntEnv("REALTIME_SEND_BUFFER", 64),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
