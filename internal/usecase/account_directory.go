package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"
)

const accountCacheTTL = 24 * time.Hour

// AccountDirectory resolves ledger account names to ids. Resolved ids are
// kept for the life of the process; Redis, when configured, shares them
// across instances.
type AccountDirectory struct {
	accountRepo repository.AccountRepository
	redisClient *redis.Client
	logger      *zap.Logger

	mu  sync.RWMutex
	ids map[string]string
}

func NewAccountDirectory(accountRepo repository.AccountRepository, redisClient *redis.Client, logger *zap.Logger) *AccountDirectory {
	return &AccountDirectory{
		accountRepo: accountRepo,
		redisClient: redisClient,
		logger:      logger,
		ids:         make(map[string]string),
	}
}

func accountCacheKey(name string) string {
	return "accounts:directory:" + name
}

// Resolve returns the id of the named account.
func (d *AccountDirectory) Resolve(ctx context.Context, name string) (string, error) {
	d.mu.RLock()
	id, ok := d.ids[name]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	// --- Check Redis cache ---
	if d.redisClient != nil {
		if val, err := d.redisClient.Get(ctx, accountCacheKey(name)).Result(); err == nil && val != "" {
			d.remember(name, val)
			return val, nil
		}
	}

	acc, err := d.accountRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrAccountMissing, name)
		}
		return "", fmt.Errorf("failed to resolve account %q: %w", name, err)
	}

	d.remember(name, acc.ID)

	if d.redisClient != nil {
		if err := d.redisClient.Set(ctx, accountCacheKey(name), acc.ID, accountCacheTTL).Err(); err != nil {
			d.logger.Warn("failed to cache account id", zap.String("account", name), zap.Error(err))
		}
	}
	return acc.ID, nil
}

// ResolveAll resolves every fixed account.
func (d *AccountDirectory) ResolveAll(ctx context.Context) (domain.AccountSet, error) {
	set := make(domain.AccountSet, len(domain.DefaultAccounts))
	for _, name := range domain.RequiredAccountNames() {
		id, err := d.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		set[name] = id
	}
	return set, nil
}

// Ready reports whether every fixed account has been resolved at least once.
func (d *AccountDirectory) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, name := range domain.RequiredAccountNames() {
		if d.ids[name] == "" {
			return false
		}
	}
	return true
}

func (d *AccountDirectory) remember(name, id string) {
	d.mu.Lock()
	d.ids[name] = id
	d.mu.Unlock()
}
