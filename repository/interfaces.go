package repository

import (
	"context"
	"time"

	"casetrack-backend/models"
)

// DTRRepositoryInterface defines the contract for DTR repository operations
type DTRRepositoryInterface interface {
	CreateDTR(ctx context.Context, dtr *models.DTR) (*models.DTR, error)
	GetDTR(ctx context.Context, key string) (*models.DTR, error)
	CaseIDExists(ctx context.Context, caseID string) (bool, error)
	ListDTRs(ctx context.Context, filter *models.DTRFilter) ([]*models.DTR, int64, error)
	UpdateDTR(ctx context.Context, dtr *models.DTR, expectedUpdatedAt time.Time) (bool, error)
	LinkRMA(ctx context.Context, dtr *models.DTR, expectedUpdatedAt time.Time) (bool, error)
	DeleteDTRs(ctx context.Context, ids []string) (int64, error)
}

// RMARepositoryInterface defines the contract for RMA repository operations
type RMARepositoryInterface interface {
	CreateRMA(ctx context.Context, rma *models.RMA) (*models.RMA, error)
	GetRMA(ctx context.Context, key string) (*models.RMA, error)
	RMANumberExists(ctx context.Context, rmaNumber string) (bool, error)
	DeleteRMA(ctx context.Context, id string) error
}

// AssetRepositoryInterface resolves units and sites from master data
type AssetRepositoryInterface interface {
	ResolveUnit(ctx context.Context, serialNumber string) (*models.ResolvedUnit, error)
	FindSiteByCode(ctx context.Context, siteCode string) (*models.Site, error)
	FindSiteByName(ctx context.Context, name string) (*models.Site, error)
}

// SequenceRepositoryInterface hands out monotonically increasing numbers
type SequenceRepositoryInterface interface {
	Next(ctx context.Context, name string) (int64, error)
}

// LeaseRepositoryInterface guards one conversion per DTR at a time
type LeaseRepositoryInterface interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// RepositoryContainerInterface defines the contract for the repository container
type RepositoryContainerInterface interface {
	GetDTRRepository() DTRRepositoryInterface
	GetRMARepository() RMARepositoryInterface
	GetAssetRepository() AssetRepositoryInterface
	GetSequenceRepository() SequenceRepositoryInterface
	GetLeaseRepository() LeaseRepositoryInterface
}
