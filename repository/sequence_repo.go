package repository

import (
	"context"
	"fmt"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "casetrack:"

// SequenceRepository counts with redis INCR when redis is configured and
// falls back to the store's counter collection otherwise.
type SequenceRepository struct {
	db     dal.CaseStoreInterface
	rdb    *redis.Client
	logger logger.Logger
}

func NewSequenceRepository(db dal.CaseStoreInterface, rdb *redis.Client, log logger.Logger) *SequenceRepository {
	return &SequenceRepository{
		db:     db,
		rdb:    rdb,
		logger: log,
	}
}

func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	if r.rdb != nil {
		n, err := r.rdb.Incr(ctx, keyPrefix+"seq:"+name).Result()
		if err == nil {
			return n, nil
		}
		r.logger.Warnf("Redis sequence %s unavailable, using store counter: %v", name, err)
	}

	n, err := r.db.Increment(ctx, models.EntityCounter, name)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return n, nil
}
