package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"reconciliation-service/internal/config"
	"reconciliation-service/internal/pub"
	"reconciliation-service/internal/repository"
	"reconciliation-service/internal/service"
	"reconciliation-service/internal/usecase"
	"reconciliation-service/pkg/utils"
)

// Deps is the wired object graph shared by the service and the operator CLI.
type Deps struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Store *repository.PGStore

	Directory      *usecase.AccountDirectory
	Reconciliation *usecase.ReconciliationUsecase
	Balances       *usecase.BalanceUsecase
	Ledger         *usecase.LedgerUsecase
	Transactions   *usecase.TransactionUsecase
	Seeder         *service.AccountSeeder

	writer *kafka.Writer
	logger *zap.Logger
}

// BuildDeps connects to storage and brokers and wires the usecases.
// Redis and Kafka are optional; without them the service runs degraded.
func BuildDeps(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Deps, error) {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d := &Deps{DB: dbpool, logger: logger}

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, dbpool, logger); err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	schedule, err := config.LoadFeeSchedule(cfg.FeeScheduleFile)
	if err != nil {
		dbpool.Close()
		return nil, err
	}

	// --- Redis client ---
	d.Redis = connectRedis(ctx, cfg, logger)

	// --- Publishers ---
	publishers := []pub.Publisher{}
	if d.Redis != nil {
		publishers = append(publishers, pub.NewRedisPublisher(d.Redis, cfg.EventChannel, logger))
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		d.writer = pub.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publishers = append(publishers, pub.NewKafkaPublisher(d.writer, logger))
		logger.Info("Kafka writer initialized",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}
	var publisher pub.Publisher = pub.NopPublisher{}
	if len(publishers) > 0 {
		publisher = pub.NewMultiPublisher(publishers...)
	}

	// --- Repositories ---
	d.Store = repository.NewStore(dbpool, repository.WithLockTimeout(cfg.DBLockTimeout))
	ids := utils.NewIDGenerator()

	// --- Usecases ---
	d.Directory = usecase.NewAccountDirectory(d.Store.Accounts(), d.Redis, logger)
	d.Balances = usecase.NewBalanceUsecase(d.Store.Balances(), d.Redis, cfg.BalanceCacheTTL, logger)
	d.Ledger = usecase.NewLedgerUsecase(d.Store.Entries(), d.Store.Accounts())
	d.Reconciliation = usecase.NewReconciliationUsecase(
		d.Store,
		d.Directory,
		usecase.NewPostingEngine(ids, logger),
		usecase.NewBalanceAggregator(ids, logger),
		publisher,
		d.Balances,
		logger,
		usecase.SweepOptions{
			BatchSize:   cfg.SweepBatchSize,
			Concurrency: cfg.SweepConcurrency,
		},
	)
	d.Transactions = usecase.NewTransactionUsecase(d.Store.Transactions(), d.Reconciliation, schedule, ids, logger)
	d.Seeder = service.NewAccountSeeder(d.Store, ids, logger)

	return d, nil
}

func connectRedis(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, caching and event pub/sub disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPass,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis connection failed, caching and event pub/sub disabled", zap.Error(err))
		_ = rdb.Close()
		return nil
	}

	logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return rdb
}

func (d *Deps) Close() {
	if d.writer != nil {
		if err := d.writer.Close(); err != nil {
			d.logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	d.DB.Close()
}
