package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	"reconciliation-service/internal/repository"
)

const feeBalancesCacheKey = "balance:fees"

// BalanceUsecase serves balance reads, optionally through a short-lived
// Redis cache that reconciliation invalidates.
type BalanceUsecase struct {
	balanceRepo repository.BalanceRepository
	redisClient *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
}

func NewBalanceUsecase(balanceRepo repository.BalanceRepository, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *BalanceUsecase {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceUsecase{
		balanceRepo: balanceRepo,
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func merchantBalanceCacheKey(merchantID, locationID string) string {
	return fmt.Sprintf("balance:merchant:%s:%s", merchantID, locationID)
}

// GetMerchantBalance returns the rounded balance, zero when nothing was
// reconciled yet for the key. No hold model exists, so funds on hold is zero.
func (uc *BalanceUsecase) GetMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalanceView, error) {
	if merchantID == "" || locationID == "" {
		return nil, fmt.Errorf("merchant_id and location_id are required: %w", domain.ErrInvalidInput)
	}

	cacheKey := merchantBalanceCacheKey(merchantID, locationID)
	var view domain.MerchantBalanceView
	if uc.getCached(ctx, cacheKey, &view) {
		return &view, nil
	}

	view = domain.MerchantBalanceView{
		MerchantID:     merchantID,
		LocationID:     locationID,
		CurrentBalance: money.Zero,
		FundsOnHold:    money.Zero,
	}

	b, err := uc.balanceRepo.GetMerchantBalance(ctx, merchantID, locationID)
	switch {
	case err == nil:
		view.CurrentBalance = b.CurrentBalance.Round2()
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	uc.setCached(ctx, cacheKey, &view)
	return &view, nil
}

func (uc *BalanceUsecase) GetFeeBalances(ctx context.Context) (*domain.FeeBalancesView, error) {
	var view domain.FeeBalancesView
	if uc.getCached(ctx, feeBalancesCacheKey, &view) {
		return &view, nil
	}

	balances, err := uc.balanceRepo.ListFeeBalances(ctx)
	if err != nil {
		return nil, err
	}

	view = domain.FeeBalancesView{Processor: money.Zero, Platform: money.Zero}
	for _, b := range balances {
		switch b.Kind {
		case domain.FeeKindProcessor:
			view.Processor = b.CurrentBalance.Round2()
		case domain.FeeKindPlatform:
			view.Platform = b.CurrentBalance.Round2()
		}
	}

	uc.setCached(ctx, feeBalancesCacheKey, &view)
	return &view, nil
}

// InvalidateMerchant drops the merchant key and the fee singletons.
func (uc *BalanceUsecase) InvalidateMerchant(ctx context.Context, merchantID, locationID string) {
	if uc.redisClient == nil {
		return
	}
	if err := uc.redisClient.Del(ctx, merchantBalanceCacheKey(merchantID, locationID), feeBalancesCacheKey).Err(); err != nil {
		uc.logger.Warn("failed to invalidate balance cache",
			zap.String("merchant_id", merchantID),
			zap.String("location_id", locationID),
			zap.Error(err),
		)
	}
}

func (uc *BalanceUsecase) getCached(ctx context.Context, key string, dst interface{}) bool {
	if uc.redisClient == nil {
		return false
	}
	val, err := uc.redisClient.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			uc.logger.Debug("balance cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return json.Unmarshal([]byte(val), dst) == nil
}

func (uc *BalanceUsecase) setCached(ctx context.Context, key string, v interface{}) {
	if uc.redisClient == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = uc.redisClient.Set(ctx, key, data, uc.ttl).Err()
	}
}
