package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"
)

// ErrDuplicateRMANumber is returned when the rmaNumber is already taken
var ErrDuplicateRMANumber = errors.New("rma with this number already exists")

type RMARepository struct {
	db     dal.CaseStoreInterface
	config *models.Config
	logger logger.Logger
}

func NewRMARepository(db dal.CaseStoreInterface, cfg *models.Config, log logger.Logger) *RMARepository {
	return &RMARepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *RMARepository) CreateRMA(ctx context.Context, rma *models.RMA) (*models.RMA, error) {
	r.logger.Infof("Creating RMA: %s for DTR %s", rma.RMANumber, rma.OriginatedFromDTR.DTRCaseID)

	if err := r.db.Insert(ctx, models.EntityRMA, rma); err != nil {
		if errors.Is(err, dal.ErrDuplicateKey) {
			return nil, ErrDuplicateRMANumber
		}
		r.logger.Errorf("Failed to create RMA %s: %v", rma.RMANumber, err)
		return nil, fmt.Errorf("failed to create rma: %w", err)
	}

	r.logger.Infof("RMA created successfully: %s", rma.RMANumber)
	return rma, nil
}

// GetRMA looks an RMA up by rmaNumber or internal id
func (r *RMARepository) GetRMA(ctx context.Context, key string) (*models.RMA, error) {
	if key == "" {
		return nil, errors.New("rma key is required")
	}

	field := "id"
	if strings.HasPrefix(key, "RMA-") {
		field = "rmaNumber"
	}

	var rma models.RMA
	found, err := r.db.FindOne(ctx, models.EntityRMA, models.Filter{field: key}, &rma)
	if err != nil {
		r.logger.Errorf("Failed to get RMA %s: %v", key, err)
		return nil, fmt.Errorf("failed to get rma: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &rma, nil
}

func (r *RMARepository) RMANumberExists(ctx context.Context, rmaNumber string) (bool, error) {
	n, err := r.db.Count(ctx, models.EntityRMA, models.Filter{"rmaNumber": rmaNumber})
	if err != nil {
		return false, fmt.Errorf("failed to check rma number: %w", err)
	}
	return n > 0, nil
}

// DeleteRMA removes an RMA whose conversion lost the commit race
func (r *RMARepository) DeleteRMA(ctx context.Context, id string) error {
	r.logger.Infof("Deleting RMA: %s", id)

	if _, err := r.db.DeleteMany(ctx, models.EntityRMA, []string{id}); err != nil {
		r.logger.Errorf("Failed to delete RMA %s: %v", id, err)
		return fmt.Errorf("failed to delete rma: %w", err)
	}
	return nil
}
