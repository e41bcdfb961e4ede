package repository

import (
	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/redis/go-redis/v9"
)

// Repository holds every repository built over one case store
type Repository struct {
	DTR      *DTRRepository
	RMA      *RMARepository
	Asset    *AssetRepository
	Sequence *SequenceRepository
	Lease    *LeaseRepository
}

// NewRepository builds the repositories. rdb may be nil.
func NewRepository(db dal.CaseStoreInterface, rdb *redis.Client, cfg *models.Config, log logger.Logger) *Repository {
	return &Repository{
		DTR:      NewDTRRepository(db, cfg, log),
		RMA:      NewRMARepository(db, cfg, log),
		Asset:    NewAssetRepository(db, cfg, log),
		Sequence: NewSequenceRepository(db, rdb, log),
		Lease:    NewLeaseRepository(rdb, log),
	}
}

func (r *Repository) GetDTRRepository() DTRRepositoryInterface           { return r.DTR }
func (r *Repository) GetRMARepository() RMARepositoryInterface           { return r.RMA }
func (r *Repository) GetAssetRepository() AssetRepositoryInterface       { return r.Asset }
func (r *Repository) GetSequenceRepository() SequenceRepositoryInterface { return r.Sequence }
func (r *Repository) GetLeaseRepository() LeaseRepositoryInterface       { return r.Lease }
