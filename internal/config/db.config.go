package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DatabaseURL prefers DATABASE_URL and falls back to the DB_* variables.
func DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		os.Getenv("DB_NAME"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func ConnectDB(ctx context.Context, logger *zap.Logger) (*pgxpool.Pool, error) {
	dbURL := DatabaseURL()

	var dbpool *pgxpool.Pool
	var err error

	maxRetries := getEnvAsInt("DB_CONNECT_RETRIES", 5)
	delay := 2 * time.Second

	for i := 1; i <= maxRetries; i++ {
		logger.Info("[DB] connecting to database", zap.Int("attempt", i), zap.Int("max_attempts", maxRetries))

		cfg, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			logger.Error("[DB] failed to parse config", zap.Error(parseErr))
			return nil, parseErr
		}

		// tuning pool settings
		cfg.MaxConns = int32(getEnvAsInt64("DB_MAX_CONNS", 50))
		cfg.MinConns = int32(getEnvAsInt64("DB_MIN_CONNS", 10))
		cfg.MaxConnLifetime = time.Hour
		cfg.MaxConnIdleTime = 5 * time.Minute

		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		dbpool, err = pgxpool.NewWithConfig(attemptCtx, cfg)
		if err == nil {
			if pingErr := dbpool.Ping(attemptCtx); pingErr == nil {
				cancel()
				logger.Info("[DB] connected successfully")
				return dbpool, nil
			} else {
				dbpool.Close()
				err = fmt.Errorf("ping failed: %w", pingErr)
			}
		}
		cancel()

		logger.Warn("[DB] connection failed", zap.Error(err))

		if i < maxRetries {
			logger.Info("[DB] retrying", zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // exponential backoff
		}
	}

	return nil, fmt.Errorf("failed to connect to DB after %d attempts: %w", maxRetries, err)
}
