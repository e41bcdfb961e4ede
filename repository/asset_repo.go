package repository

import (
	"context"
	"fmt"
	"strings"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"
)

// AssetRepository reads projector and site master data. It never writes.
type AssetRepository struct {
	db     dal.CaseStoreInterface
	config *models.Config
	logger logger.Logger
}

func NewAssetRepository(db dal.CaseStoreInterface, cfg *models.Config, log logger.Logger) *AssetRepository {
	return &AssetRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

// ResolveUnit follows serial number -> projector -> site -> auditorium. It
// returns nil when the projector is unknown; a known projector with a
// missing site comes back with a nil Site.
func (r *AssetRepository) ResolveUnit(ctx context.Context, serialNumber string) (*models.ResolvedUnit, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, nil
	}

	var projector models.Projector
	found, err := r.db.FindOne(ctx, models.EntityProjector, models.Filter{"serialNumber": serialNumber}, &projector)
	if err != nil {
		r.logger.Errorf("Failed to resolve projector %s: %v", serialNumber, err)
		return nil, fmt.Errorf("failed to resolve projector: %w", err)
	}
	if !found {
		r.logger.Infof("No projector found for serial %s", serialNumber)
		return nil, nil
	}

	resolved := &models.ResolvedUnit{Unit: &projector}
	if projector.SiteID == "" {
		return resolved, nil
	}

	var site models.Site
	found, err = r.db.FindOne(ctx, models.EntitySite, models.Filter{"id": projector.SiteID}, &site)
	if err != nil {
		r.logger.Errorf("Failed to resolve site %s: %v", projector.SiteID, err)
		return nil, fmt.Errorf("failed to resolve site: %w", err)
	}
	if !found {
		r.logger.Warnf("Projector %s references missing site %s", serialNumber, projector.SiteID)
		return resolved, nil
	}

	resolved.Site = &site
	resolved.Auditorium = site.FindAuditorium(projector.AuditoriumID)
	return resolved, nil
}

func (r *AssetRepository) FindSiteByCode(ctx context.Context, siteCode string) (*models.Site, error) {
	return r.findSite(ctx, models.Filter{"siteCode": strings.TrimSpace(siteCode)})
}

func (r *AssetRepository) FindSiteByName(ctx context.Context, name string) (*models.Site, error) {
	return r.findSite(ctx, models.Filter{"name": strings.TrimSpace(name)})
}

func (r *AssetRepository) findSite(ctx context.Context, filter models.Filter) (*models.Site, error) {
	var site models.Site
	found, err := r.db.FindOne(ctx, models.EntitySite, filter, &site)
	if err != nil {
		r.logger.Errorf("Failed to find site %v: %v", filter, err)
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &site, nil
}
