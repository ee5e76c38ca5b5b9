package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	AppEnv   string
	HTTPAddr string
	GRPCAddr string

	RedisAddr string
	RedisPass string
	RedisDB   int

	KafkaBrokers []string
	KafkaTopic   string
	EventChannel string

	AdminJWTSecret string
	AllowedOrigins []string

	SweepEnabled     bool
	SweepInterval    time.Duration
	SweepBatchSize   int
	SweepConcurrency int

	DBLockTimeout   time.Duration
	BalanceCacheTTL time.Duration
	FeeScheduleFile string
	AutoMigrate     bool
}

func Load() AppConfig {
	return AppConfig{
		AppEnv:   getEnv("APP_ENV", "production"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8031"),
		GRPCAddr: getEnv("GRPC_ADDR", ":8032"),

		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "reconciliation-events"),
		EventChannel: getEnv("RECONCILIATION_EVENTS_CHANNEL", "reconciliation_events"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		SweepEnabled:     getEnvAsBool("SWEEP_ENABLED", true),
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepBatchSize:   getEnvAsInt("SWEEP_BATCH_SIZE", 100),
		SweepConcurrency: getEnvAsInt("SWEEP_CONCURRENCY", 1),

		DBLockTimeout:   getEnvAsDuration("DB_LOCK_TIMEOUT", 5*time.Second),
		BalanceCacheTTL: getEnvAsDuration("BALANCE_CACHE_TTL", 30*time.Second),
		FeeScheduleFile: getEnv("FEE_SCHEDULE_FILE", ""),
		AutoMigrate:     getEnvAsBool("AUTO_MIGRATE", false),
	}
}

func (c AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
