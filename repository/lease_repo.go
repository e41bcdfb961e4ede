package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casetrack-backend/utils/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseRepository narrows the window in which two conversions of the same
// DTR can run at once. Without redis every lease is granted and the store's
// conditional write alone decides the winner.
type LeaseRepository struct {
	rdb    *redis.Client
	logger logger.Logger
}

func NewLeaseRepository(rdb *redis.Client, log logger.Logger) *LeaseRepository {
	return &LeaseRepository{
		rdb:    rdb,
		logger: log,
	}
}

func (r *LeaseRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	if r.rdb == nil {
		return token, true, nil
	}

	ok, err := r.rdb.SetNX(ctx, keyPrefix+"lease:"+key, token, ttl).Result()
	if err != nil {
		r.logger.Errorf("Failed to acquire lease %s: %v", key, err)
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return token, ok, nil
}

func (r *LeaseRepository) Release(ctx context.Context, key, token string) error {
	if r.rdb == nil {
		return nil
	}
	err := releaseScript.Run(ctx, r.rdb, []string{keyPrefix + "lease:" + key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Errorf("Failed to release lease %s: %v", key, err)
		return err
	}
	return nil
}
