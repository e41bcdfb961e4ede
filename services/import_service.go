package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"
	"casetrack-backend/utils/datenorm"
	"casetrack-backend/utils/logger"

	"github.com/google/uuid"
)

const (
	defaultImportMaxRows   = 1000
	defaultImportBatchSize = 100
	defaultImportTimeout   = 5 * time.Minute
	defaultImportErrorCap  = 50

	importedWithoutDescription = "Imported without description"
)

// Legacy and free-text enum spellings seen in field spreadsheets, keyed by
// their folded form. Values not listed pass through unchanged and are then
// checked by validation.
var (
	priorityAliases = map[string]string{
		"low":         string(models.PriorityLow),
		"information": string(models.PriorityLow),
		"minor":       string(models.PriorityLow),
		"medium":      string(models.PriorityMedium),
		"normal":      string(models.PriorityMedium),
		"high":        string(models.PriorityHigh),
		"major":       string(models.PriorityHigh),
		"critical":    string(models.PriorityCritical),
		"urgent":      string(models.PriorityCritical),
	}
	callStatusAliases = map[string]string{
		"open":                   models.CallStatusOpen,
		"in progress":            models.CallStatusOpen,
		"pending":                models.CallStatusOpen,
		"closed":                 models.CallStatusClosed,
		"resolved":               models.CallStatusClosed,
		"observation":            models.CallStatusObservation,
		"waiting cust responses": models.CallStatusWaitingCustomer,
		"waiting for customer":   models.CallStatusWaitingCustomer,
	}
	severityAliases = map[string]string{
		"information": string(models.SeverityInformation),
		"info":        string(models.SeverityInformation),
		"low":         string(models.SeverityInformation),
		"minor":       string(models.SeverityMinor),
		"medium":      string(models.SeverityMinor),
		"major":       string(models.SeverityMajor),
		"high":        string(models.SeverityMajor),
		"critical":    string(models.SeverityCritical),
	}
)

// ImportService turns spreadsheet rows into DTRs. Rows are independent:
// a failing row is recorded and the batch carries on.
type ImportService struct {
	dtrRepo   repository.DTRRepositoryInterface
	assetRepo repository.AssetRepositoryInterface
	ids       *IDGenerator
	notifier  *notification.Dispatcher
	config    *models.Config
	logger    logger.Logger
	now       func() time.Time
}

func NewImportService(
	dtrRepo repository.DTRRepositoryInterface,
	assetRepo repository.AssetRepositoryInterface,
	ids *IDGenerator,
	notifier *notification.Dispatcher,
	config *models.Config,
	logger logger.Logger,
) *ImportService {
	return &ImportService{
		dtrRepo:   dtrRepo,
		assetRepo: assetRepo,
		ids:       ids,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ImportService) BulkImport(ctx context.Context, actor *models.Actor, rows []models.ImportRow) (*models.ImportResult, error) {
	if err := Authorize(actor, ActionBulkImport, nil); err != nil {
		s.logger.Warnf("Rejected bulk import by %s (%s): %v", actor.DisplayName(), actor.Role, err)
		return nil, err
	}

	maxRows := positiveOr(s.config.ImportMaxRows, defaultImportMaxRows)
	if len(rows) == 0 {
		return nil, models.NewValidationError("import batch is empty")
	}
	if len(rows) > maxRows {
		return nil, models.NewValidationError("import batch has %d rows, at most %d are accepted", len(rows), maxRows)
	}

	batchSize := positiveOr(s.config.ImportBatchSize, defaultImportBatchSize)
	errorCap := positiveOr(s.config.ImportErrorCap, defaultImportErrorCap)
	timeout := s.config.ImportTimeout
	if timeout <= 0 {
		timeout = defaultImportTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := &models.ImportResult{
		Errors:    []string{},
		RowErrors: []models.ImportRowError{},
	}
	s.logger.Infof("Bulk import of %d rows by %s started", len(rows), actor.DisplayName())

batches:
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		s.logger.Debugf("Importing rows %d-%d", start+1, end)

		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				result.TimedOut = true
				result.Skipped = len(rows) - i
				s.recordError(result, errorCap, models.ImportRowError{
					RowIndex: i + 1,
					Message:  fmt.Sprintf("import timed out after %s, %d rows not processed", timeout, result.Skipped),
				})
				break batches
			}

			rowIndex := i + 1
			dtr, err := s.importRow(ctx, actor, rows[i], rowIndex)
			if err != nil {
				result.Failed++
				rowErr := models.ImportRowError{RowIndex: rowIndex, Message: err.Error()}
				var appErr *models.AppError
				if errors.As(err, &appErr) {
					rowErr.Message = appErr.Message
					rowErr.CaseID = appErr.CaseID
				}
				s.recordError(result, errorCap, rowErr)
				continue
			}
			result.Imported++
			s.logger.Debugf("Row %d imported as %s", rowIndex, dtr.CaseID)
		}
	}

	s.logger.Infof("Bulk import finished: imported=%d failed=%d skipped=%d timedOut=%t",
		result.Imported, result.Failed, result.Skipped, result.TimedOut)

	if s.notifier != nil && result.Imported > 0 {
		s.notifier.Dispatch(notification.Event{
			Type:    notification.EventImported,
			CaseID:  "bulk-import",
			Actor:   actor,
			Details: fmt.Sprintf("%d imported, %d failed, %d skipped", result.Imported, result.Failed, result.Skipped),
		})
	}
	return result, nil
}

func (s *ImportService) recordError(result *models.ImportResult, errorCap int, rowErr models.ImportRowError) {
	s.logger.Warnf("Import row %d failed: %s", rowErr.RowIndex, rowErr.Message)
	if len(result.RowErrors) >= errorCap {
		return
	}
	result.RowErrors = append(result.RowErrors, rowErr)
	result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowErr.RowIndex, rowErr.Message))
}

// importRow materializes and stores one row
func (s *ImportService) importRow(ctx context.Context, actor *models.Actor, row models.ImportRow, rowIndex int) (*models.DTR, error) {
	now := s.now()
	r := newRowReader(row)

	caseID := r.str("caseId", "case id", "dtr number", "dtrNumber")
	if caseID != "" {
		exists, err := s.dtrRepo.CaseIDExists(ctx, caseID)
		if err != nil {
			return nil, importError(caseID, "failed to check caseId: %v", err)
		}
		if exists {
			return nil, importError(caseID, "caseId %s already exists", caseID)
		}
	} else {
		generated, err := s.ids.NextCaseID(ctx)
		if err != nil {
			return nil, importError("", "failed to generate caseId: %v", err)
		}
		caseID = generated
	}

	dtr := &models.DTR{
		ID:                   uuid.New().String(),
		CaseID:               caseID,
		ComplaintDescription: r.str("complaintDescription", "complaint", "description", "problem description"),
		ProblemName:          r.str("problemName", "problem"),
		ActionTaken:          r.str("actionTaken", "action"),
		Remarks:              r.str("remarks"),
		ClosedRemarks:        r.str("closedRemarks"),
		ClosedReason:         models.NormalizeClosedReason(r.str("closedReason")),
		Priority:             models.Priority(normalizeEnum(r.str("priority"), priorityAliases, string(models.PriorityMedium))),
		CaseSeverity:         models.Severity(normalizeEnum(r.str("caseSeverity", "severity"), severityAliases, string(models.SeverityMinor))),
		CallStatus:           normalizeEnum(r.str("callStatus", "call status"), callStatusAliases, models.CallStatusOpen),
		Status:               models.DTRStatusOpen,
		ErrorDate:            models.NewFlexTime(datenorm.Value(r.raw("errorDate", "error date", "date"), now)),
		OpenedBy: models.OpenedBy{
			Name:        r.str("openedBy", "openedByName", "opened by"),
			Designation: r.str("openedByDesignation", "designation"),
			Contact:     r.str("openedByContact", "contact"),
		},
		TroubleshootingSteps: []models.TroubleshootingStep{},
		WorkflowHistory:      []models.WorkflowEntry{},
		Attachments:          []models.Attachment{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if dtr.ComplaintDescription == "" {
		dtr.ComplaintDescription = importedWithoutDescription
	}
	if dtr.OpenedBy.Name == "" {
		dtr.OpenedBy = models.OpenedBy{
			Name:        actor.DisplayName(),
			Designation: actor.Designation,
			Contact:     actor.Contact,
			UserID:      actor.UserID,
		}
	}

	if err := s.resolveLocation(ctx, dtr, r, rowIndex); err != nil {
		return nil, importError(caseID, "%v", err)
	}

	if status := models.DTRStatus(r.str("status")); status != "" {
		if !isKnownStatus(status) || status == models.DTRStatusShiftedToRMA {
			return nil, importError(caseID, "status %s cannot be imported", status)
		}
		dtr.Status = status
	}
	if dtr.Status == models.DTRStatusClosed {
		closedAt := datenorm.Value(r.raw("closedDate", "closed date"), now)
		dtr.ClosedBy = &models.ClosedBy{
			Name:       r.str("closedBy", "closed by"),
			ClosedDate: &closedAt,
		}
		if dtr.ClosedBy.Name == "" {
			dtr.ClosedBy.Name = actor.DisplayName()
		}
	}
	if assignee := r.str("assignedTo", "assigned to", "technician"); assignee != "" {
		dtr.AssignedTo = &models.Assignee{Name: assignee, Role: models.RoleTechnician, AssignedDate: now}
	}

	if err := validateStruct(dtr); err != nil {
		return nil, importError(caseID, "%s", err.(*models.AppError).Message)
	}

	dtr.AppendHistory(actor, models.HistoryActionCreated, fmt.Sprintf("Imported from row %d", rowIndex), "", string(dtr.Status), now)

	if _, err := s.dtrRepo.CreateDTR(ctx, dtr); err != nil {
		if errors.Is(err, repository.ErrDuplicateCaseID) {
			return nil, importError(caseID, "caseId %s already exists", caseID)
		}
		return nil, importError(caseID, "failed to save: %v", err)
	}
	return dtr, nil
}

// resolveLocation fills the unit/site snapshot. Unresolved references fall
// back to row overrides and then to sentinel values.
func (s *ImportService) resolveLocation(ctx context.Context, dtr *models.DTR, r rowReader, rowIndex int) error {
	serial := r.str("serialNumber", "serial number", "serial no", "serial")
	auditoriumOverride := r.str("auditorium", "audi", "audi no")

	var resolved *models.ResolvedUnit
	if serial == "" {
		dtr.SerialNumber = s.ids.PlaceholderSerial(rowIndex)
	} else {
		dtr.SerialNumber = serial
		unit, err := s.assetRepo.ResolveUnit(ctx, serial)
		if err != nil {
			return fmt.Errorf("failed to resolve serial %s: %w", serial, err)
		}
		resolved = unit
		if resolved == nil {
			s.logger.Infof("Row %d: serial %s not found, using sentinel values", rowIndex, serial)
		}
	}

	if resolved == nil || resolved.Site == nil {
		site, err := s.siteFromOverrides(ctx, r)
		if err != nil {
			return err
		}
		if site != nil {
			if resolved == nil {
				resolved = &models.ResolvedUnit{}
			}
			resolved.Site = site
			resolved.Auditorium = site.FindAuditorium(auditoriumOverride)
		}
	}

	applySnapshot(dtr, resolved, auditoriumOverride)

	// free-text overrides only replace sentinels, never resolved values
	if dtr.SiteName == models.UnknownSiteName {
		if name := r.str("siteName", "site name", "site"); name != "" {
			dtr.SiteName = name
		}
	}
	if dtr.SiteCode == models.UnknownSiteCode {
		if code := r.str("siteCode", "site code"); code != "" {
			dtr.SiteCode = code
		}
	}
	if dtr.Region == models.UnknownRegion {
		if region := r.str("region"); region != "" {
			dtr.Region = region
		}
	}
	if dtr.UnitModel == models.UnknownUnitModel {
		if model := r.str("unitModel", "unit model", "model", "projector model"); model != "" {
			dtr.UnitModel = model
		}
	}
	return nil
}

func (s *ImportService) siteFromOverrides(ctx context.Context, r rowReader) (*models.Site, error) {
	if code := r.str("siteCode", "site code"); code != "" {
		site, err := s.assetRepo.FindSiteByCode(ctx, code)
		if err != nil || site != nil {
			return site, err
		}
	}
	if name := r.str("siteName", "site name", "site"); name != "" {
		return s.assetRepo.FindSiteByName(ctx, name)
	}
	return nil, nil
}

func importError(caseID, format string, args ...interface{}) *models.AppError {
	return &models.AppError{
		Kind:    models.KindImportRow,
		Message: fmt.Sprintf(format, args...),
		CaseID:  caseID,
	}
}

// normalizeEnum maps raw through aliases; blank input yields def
func normalizeEnum(raw string, aliases map[string]string, def string) string {
	if raw == "" {
		return def
	}
	if mapped, ok := aliases[foldKey(raw)]; ok {
		return mapped
	}
	return raw
}

// foldKey lowercases and treats spaces, underscores and dashes alike
func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// rowReader looks columns up by any of several spellings
type rowReader map[string]interface{}

func newRowReader(row models.ImportRow) rowReader {
	r := make(rowReader, len(row))
	for k, v := range row {
		r[compactKey(k)] = v
	}
	return r
}

func compactKey(k string) string {
	return strings.ReplaceAll(foldKey(k), " ", "")
}

func (r rowReader) raw(names ...string) interface{} {
	for _, name := range names {
		if v, ok := r[compactKey(name)]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func (r rowReader) str(names ...string) string {
	switch v := r.raw(names...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]interface{}:
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
