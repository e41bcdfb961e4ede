package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

var caseIDPattern = regexp.MustCompile(`^(DTR|IMPORT)-`)

// ErrDuplicateCaseID is returned when a DTR with the same id or caseId exists
var ErrDuplicateCaseID = errors.New("dtr with this caseId already exists")

type DTRRepository struct {
	db     dal.CaseStoreInterface
	config *models.Config
	logger logger.Logger
}

func NewDTRRepository(db dal.CaseStoreInterface, cfg *models.Config, log logger.Logger) *DTRRepository {
	return &DTRRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *DTRRepository) CreateDTR(ctx context.Context, dtr *models.DTR) (*models.DTR, error) {
	r.logger.Infof("Creating DTR: %s", dtr.CaseID)

	exists, err := r.CaseIDExists(ctx, dtr.CaseID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateCaseID
	}

	if err := r.db.Insert(ctx, models.EntityDTR, dtr); err != nil {
		if errors.Is(err, dal.ErrDuplicateKey) {
			return nil, ErrDuplicateCaseID
		}
		r.logger.Errorf("Failed to create DTR %s: %v", dtr.CaseID, err)
		return nil, fmt.Errorf("failed to create dtr: %w", err)
	}

	r.logger.Infof("DTR created successfully: %s", dtr.CaseID)
	return dtr, nil
}

// GetDTR looks a DTR up by caseId or internal id. A missing DTR returns
// nil without error.
func (r *DTRRepository) GetDTR(ctx context.Context, key string) (*models.DTR, error) {
	if key == "" {
		return nil, errors.New("dtr key is required")
	}

	field := r.determineKeyType(key)
	var dtr models.DTR
	found, err := r.db.FindOne(ctx, models.EntityDTR, models.Filter{field: key}, &dtr)
	if err != nil {
		r.logger.Errorf("Failed to get DTR %s: %v", key, err)
		return nil, fmt.Errorf("failed to get dtr: %w", err)
	}
	if !found && field == "caseId" {
		// caseIds supplied on import may not follow the generated format
		found, err = r.db.FindOne(ctx, models.EntityDTR, models.Filter{"id": key}, &dtr)
		if err != nil {
			return nil, fmt.Errorf("failed to get dtr: %w", err)
		}
	}
	if !found && field == "id" {
		found, err = r.db.FindOne(ctx, models.EntityDTR, models.Filter{"caseId": key}, &dtr)
		if err != nil {
			return nil, fmt.Errorf("failed to get dtr: %w", err)
		}
	}
	if !found {
		return nil, nil
	}
	return &dtr, nil
}

func (r *DTRRepository) CaseIDExists(ctx context.Context, caseID string) (bool, error) {
	if caseID == "" {
		return false, nil
	}
	n, err := r.db.Count(ctx, models.EntityDTR, models.Filter{"caseId": caseID})
	if err != nil {
		r.logger.Errorf("Failed to check caseId %s: %v", caseID, err)
		return false, fmt.Errorf("failed to check caseId: %w", err)
	}
	return n > 0, nil
}

// ListDTRs returns one page of DTRs, newest first, plus the total match count.
func (r *DTRRepository) ListDTRs(ctx context.Context, filter *models.DTRFilter) ([]*models.DTR, int64, error) {
	if filter == nil {
		filter = &models.DTRFilter{}
	}
	page, limit := normalizePaging(filter.Page, filter.Limit)
	filter.Page, filter.Limit = page, limit

	query := models.Filter{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.SerialNumber != "" {
		query["serialNumber"] = filter.SerialNumber
	}
	if filter.SiteCode != "" {
		query["siteCode"] = filter.SiteCode
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}

	r.logger.Infof("Listing DTRs: filter=%v page=%d limit=%d", query, page, limit)

	// assignee lives in a nested document, so it is matched here instead
	// of in the store query
	if filter.AssignedTo != "" {
		var all []*models.DTR
		if err := r.db.Find(ctx, models.EntityDTR, query, models.FindOptions{SortBy: "createdAt", SortDesc: true}, &all); err != nil {
			return nil, 0, fmt.Errorf("failed to list dtrs: %w", err)
		}
		matched := make([]*models.DTR, 0, len(all))
		for _, d := range all {
			if d.AssignedTo != nil && (d.AssignedTo.UserID == filter.AssignedTo || strings.EqualFold(d.AssignedTo.Name, filter.AssignedTo)) {
				matched = append(matched, d)
			}
		}
		total := int64(len(matched))
		start := (page - 1) * limit
		if start >= len(matched) {
			return []*models.DTR{}, total, nil
		}
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		return matched[start:end], total, nil
	}

	total, err := r.db.Count(ctx, models.EntityDTR, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dtrs: %w", err)
	}

	items := []*models.DTR{}
	opts := models.FindOptions{SortBy: "createdAt", SortDesc: true, Skip: (page - 1) * limit, Limit: limit}
	if err := r.db.Find(ctx, models.EntityDTR, query, opts, &items); err != nil {
		r.logger.Errorf("Failed to list DTRs: %v", err)
		return nil, 0, fmt.Errorf("failed to list dtrs: %w", err)
	}
	return items, total, nil
}

// UpdateDTR writes the mutable fields of dtr, provided nobody else wrote the
// record since expectedUpdatedAt. It reports false on a lost race.
func (r *DTRRepository) UpdateDTR(ctx context.Context, dtr *models.DTR, expectedUpdatedAt time.Time) (bool, error) {
	r.logger.Infof("Updating DTR: %s", dtr.CaseID)

	cond := &models.Condition{Field: "updatedAt", Equals: expectedUpdatedAt}
	ok, err := r.db.UpdateByID(ctx, models.EntityDTR, dtr.ID, mutablePatch(dtr), cond)
	if err != nil {
		r.logger.Errorf("Failed to update DTR %s: %v", dtr.CaseID, err)
		return false, fmt.Errorf("failed to update dtr: %w", err)
	}
	if !ok {
		r.logger.Warnf("DTR %s changed concurrently, update not applied", dtr.CaseID)
	}
	return ok, nil
}

// LinkRMA commits a conversion. It only applies while the stored record has
// no rmaCaseNumber and was not written since expectedUpdatedAt, so the
// history it carries never overwrites a concurrent entry.
func (r *DTRRepository) LinkRMA(ctx context.Context, dtr *models.DTR, expectedUpdatedAt time.Time) (bool, error) {
	r.logger.Infof("Linking DTR %s to RMA %s", dtr.CaseID, dtr.RMACaseNumber)

	patch := map[string]interface{}{
		"status":          dtr.Status,
		"rmaCaseNumber":   dtr.RMACaseNumber,
		"closedReason":    dtr.ClosedReason,
		"conversionToRMA": dtr.ConversionToRMA,
		"workflowHistory": dtr.WorkflowHistory,
		"updatedAt":       dtr.UpdatedAt,
	}
	if dtr.ClosedBy != nil {
		patch["closedBy"] = dtr.ClosedBy
	}

	cond := &models.Condition{
		Field:   "rmaCaseNumber",
		IsEmpty: true,
		And:     []models.Condition{{Field: "updatedAt", Equals: expectedUpdatedAt}},
	}
	ok, err := r.db.UpdateByID(ctx, models.EntityDTR, dtr.ID, patch, cond)
	if err != nil {
		r.logger.Errorf("Failed to link DTR %s: %v", dtr.CaseID, err)
		return false, fmt.Errorf("failed to link dtr to rma: %w", err)
	}
	return ok, nil
}

func (r *DTRRepository) DeleteDTRs(ctx context.Context, ids []string) (int64, error) {
	r.logger.Infof("Deleting %d DTRs", len(ids))

	deleted, err := r.db.DeleteMany(ctx, models.EntityDTR, ids)
	if err != nil {
		r.logger.Errorf("Failed to delete DTRs: %v", err)
		return deleted, fmt.Errorf("failed to delete dtrs: %w", err)
	}

	r.logger.Infof("Deleted %d of %d DTRs", deleted, len(ids))
	return deleted, nil
}

// determineKeyType picks the lookup field for a key
func (r *DTRRepository) determineKeyType(key string) string {
	if caseIDPattern.MatchString(key) {
		return "caseId"
	}
	return "id"
}

// mutablePatch lists the fields a workflow transition may change. Identity,
// openedBy and the site/unit snapshot are never part of it.
func mutablePatch(dtr *models.DTR) map[string]interface{} {
	patch := map[string]interface{}{
		"status":               dtr.Status,
		"complaintDescription": dtr.ComplaintDescription,
		"problemName":          dtr.ProblemName,
		"actionTaken":          dtr.ActionTaken,
		"remarks":              dtr.Remarks,
		"closedRemarks":        dtr.ClosedRemarks,
		"closedReason":         dtr.ClosedReason,
		"priority":             dtr.Priority,
		"caseSeverity":         dtr.CaseSeverity,
		"callStatus":           dtr.CallStatus,
		"errorDate":            dtr.ErrorDate,
		"troubleshootingSteps": dtr.TroubleshootingSteps,
		"workflowHistory":      dtr.WorkflowHistory,
		"conversionToRMA":      dtr.ConversionToRMA,
		"attachments":          dtr.Attachments,
		"updatedAt":            dtr.UpdatedAt,
	}
	if dtr.AssignedTo != nil {
		patch["assignedTo"] = dtr.AssignedTo
	} else {
		patch["assignedTo"] = nil
	}
	if dtr.ClosedBy != nil {
		patch["closedBy"] = dtr.ClosedBy
	} else {
		patch["closedBy"] = nil
	}
	return patch
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
