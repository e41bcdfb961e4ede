package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"
	"casetrack-backend/utils/datenorm"
	"casetrack-backend/utils/logger"

	"github.com/google/uuid"
)

const defaultBulkDeleteMax = 500

// DTRService is the DTR state machine. Every operation reads the case fresh,
// mutates a local copy and commits it with one conditional write.
type DTRService struct {
	dtrRepo   repository.DTRRepositoryInterface
	assetRepo repository.AssetRepositoryInterface
	ids       *IDGenerator
	notifier  *notification.Dispatcher
	config    *models.Config
	logger    logger.Logger
	now       func() time.Time
}

func NewDTRService(
	dtrRepo repository.DTRRepositoryInterface,
	assetRepo repository.AssetRepositoryInterface,
	ids *IDGenerator,
	notifier *notification.Dispatcher,
	config *models.Config,
	logger logger.Logger,
) *DTRService {
	return &DTRService{
		dtrRepo:   dtrRepo,
		assetRepo: assetRepo,
		ids:       ids,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *DTRService) CreateDTR(ctx context.Context, actor *models.Actor, req *models.CreateDTRRequest) (*models.DTR, error) {
	if err := s.authorize(actor, ActionCreate, nil); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, models.NewValidationError("dtr request is required")
	}
	req.SerialNumber = strings.TrimSpace(req.SerialNumber)
	req.CaseID = strings.TrimSpace(req.CaseID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	caseID := req.CaseID
	if caseID != "" {
		exists, err := s.dtrRepo.CaseIDExists(ctx, caseID)
		if err != nil {
			return nil, models.NewPersistenceError(err, "failed to check caseId")
		}
		if exists {
			return nil, models.NewValidationError("caseId %s already exists", caseID)
		}
	} else {
		generated, err := s.ids.NextCaseID(ctx)
		if err != nil {
			return nil, models.NewPersistenceError(err, "failed to generate caseId")
		}
		caseID = generated
	}

	resolved, err := s.assetRepo.ResolveUnit(ctx, req.SerialNumber)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to resolve unit %s", req.SerialNumber)
	}
	if resolved == nil {
		return nil, models.NewNotFoundError("unit with serial number %s not found", req.SerialNumber)
	}

	now := s.now()
	dtr := &models.DTR{
		ID:                   uuid.New().String(),
		CaseID:               caseID,
		SerialNumber:         req.SerialNumber,
		ErrorDate:            models.NewFlexTime(datenorm.OrNow(req.ErrorDate, now)),
		ComplaintDescription: req.ComplaintDescription,
		ProblemName:          req.ProblemName,
		ActionTaken:          req.ActionTaken,
		Remarks:              req.Remarks,
		Priority:             req.Priority,
		CaseSeverity:         req.CaseSeverity,
		CallStatus:           req.CallStatus,
		Status:               models.DTRStatusOpen,
		OpenedBy:             req.OpenedBy,
		TroubleshootingSteps: []models.TroubleshootingStep{},
		WorkflowHistory:      []models.WorkflowEntry{},
		Attachments:          []models.Attachment{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if dtr.Priority == "" {
		dtr.Priority = models.PriorityMedium
	}
	if dtr.CaseSeverity == "" {
		dtr.CaseSeverity = models.SeverityMinor
	}
	if dtr.CallStatus == "" {
		dtr.CallStatus = models.CallStatusOpen
	}
	for _, a := range req.Attachments {
		a.UploadedBy = actor.DisplayName()
		if a.UploadedAt.IsZero() {
			a.UploadedAt = now
		}
		dtr.Attachments = append(dtr.Attachments, a)
	}
	applySnapshot(dtr, resolved, "")
	if req.AssignedTo != nil {
		dtr.AssignedTo = req.AssignedTo.Normalize(models.RoleTechnician, now)
	}

	dtr.AppendHistory(actor, models.HistoryActionCreated, fmt.Sprintf("DTR %s created for unit %s", dtr.CaseID, dtr.SerialNumber), "", string(dtr.Status), now)

	created, err := s.dtrRepo.CreateDTR(ctx, dtr)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCaseID) {
			return nil, models.NewValidationError("caseId %s already exists", dtr.CaseID)
		}
		return nil, models.NewPersistenceError(err, "failed to create dtr %s", dtr.CaseID)
	}

	s.notify(notification.EventCreated, actor, created, "")
	return created, nil
}

func (s *DTRService) GetDTR(ctx context.Context, actor *models.Actor, id string) (*models.DTR, error) {
	if err := s.authorize(actor, ActionRead, nil); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *DTRService) ListDTRs(ctx context.Context, actor *models.Actor, filter *models.DTRFilter) (*models.DTRList, error) {
	if err := s.authorize(actor, ActionRead, nil); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = &models.DTRFilter{}
	}
	if filter.Status != "" && !isKnownStatus(filter.Status) {
		return nil, models.NewValidationError("unknown status %s", filter.Status)
	}

	items, total, err := s.dtrRepo.ListDTRs(ctx, filter)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to list dtrs")
	}
	return &models.DTRList{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// UpdateDTR applies the generic patch. Closing goes through here; shifting
// to RMA does not.
func (s *DTRService) UpdateDTR(ctx context.Context, actor *models.Actor, id string, req *models.UpdateDTRRequest) (*models.DTR, error) {
	if req == nil {
		return nil, models.NewValidationError("update request is required")
	}
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionUpdate, dtr); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if dtr.Status.IsTerminal() && touchesWorkflowFields(req) {
		return nil, s.reject(actor, dtr, "update", models.NewValidationError("case is %s; only remarks may be edited", dtr.Status))
	}

	now := s.now()
	updated := *dtr

	if req.ComplaintDescription != nil {
		updated.ComplaintDescription = *req.ComplaintDescription
	}
	if req.ProblemName != nil {
		updated.ProblemName = *req.ProblemName
	}
	if req.ActionTaken != nil {
		updated.ActionTaken = *req.ActionTaken
	}
	if req.Remarks != nil {
		updated.Remarks = *req.Remarks
	}
	if req.ClosedRemarks != nil {
		updated.ClosedRemarks = *req.ClosedRemarks
	}
	if req.ClosedReason != nil {
		updated.ClosedReason = models.NormalizeClosedReason(*req.ClosedReason)
	}
	if req.Priority != nil {
		updated.Priority = *req.Priority
	}
	if req.CaseSeverity != nil {
		updated.CaseSeverity = *req.CaseSeverity
	}
	if req.CallStatus != nil {
		updated.CallStatus = *req.CallStatus
	}
	if req.ErrorDate != nil {
		updated.ErrorDate = models.NewFlexTime(datenorm.OrNow(*req.ErrorDate, now))
	}

	event := notification.EventType("")
	if req.Status != nil && *req.Status != dtr.Status {
		to := *req.Status
		if !isKnownStatus(to) {
			return nil, s.reject(actor, dtr, "update", models.NewValidationError("unknown status %s", to))
		}
		if to == models.DTRStatusShiftedToRMA {
			return nil, s.reject(actor, dtr, "update", models.NewValidationError("use the convert operation to shift a case to RMA"))
		}
		if err := checkTransition(dtr, to); err != nil {
			return nil, s.reject(actor, dtr, "update", err)
		}

		updated.Status = to
		if to == models.DTRStatusClosed {
			updated.ClosedBy = closedByFor(actor, req.ClosedBy, now)
		} else {
			updated.ClosedBy = nil
		}
		updated.AppendHistory(actor, models.HistoryActionStatusChanged,
			fmt.Sprintf("Status changed from %s to %s", dtr.Status, to), string(dtr.Status), string(to), now)
		event = notification.EventStatusChanged
	}

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	if event != "" {
		s.notify(event, actor, &updated, "")
	}
	return &updated, nil
}

func (s *DTRService) AddTroubleshootingStep(ctx context.Context, actor *models.Actor, id string, req *models.TroubleshootingStepRequest) (*models.DTR, error) {
	if req == nil {
		return nil, models.NewValidationError("troubleshooting step is required")
	}
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionAddTroubleshooting, dtr); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if dtr.Status.IsTerminal() {
		return nil, s.reject(actor, dtr, string(ActionAddTroubleshooting), models.NewValidationError("case is %s", dtr.Status))
	}

	now := s.now()
	updated := *dtr
	step := models.TroubleshootingStep{
		Step:        len(dtr.TroubleshootingSteps) + 1,
		Description: req.Description,
		Outcome:     req.Outcome,
		PerformedBy: actor.DisplayName(),
		PerformedAt: now,
		Attachments: req.Attachments,
	}
	updated.TroubleshootingSteps = append(append([]models.TroubleshootingStep{}, dtr.TroubleshootingSteps...), step)
	updated.AppendHistory(actor, models.HistoryActionTroubleshoot,
		fmt.Sprintf("Step %d: %s", step.Step, step.Description), "", step.Outcome, now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *DTRService) MarkForConversion(ctx context.Context, actor *models.Actor, id string, reason string) (*models.DTR, error) {
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionMarkForConversion, dtr); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("conversion reason is required")
	}
	if dtr.RMACaseNumber != "" {
		return nil, models.NewAlreadyConvertedError(dtr.CaseID, dtr.RMACaseNumber)
	}
	if dtr.Status.IsTerminal() {
		return nil, s.reject(actor, dtr, string(ActionMarkForConversion), models.NewValidationError("case is %s", dtr.Status))
	}

	now := s.now()
	updated := *dtr
	updated.ConversionToRMA.CanConvert = true
	updated.ConversionToRMA.ConversionReason = reason
	updated.AppendHistory(actor, models.HistoryActionEscalated,
		fmt.Sprintf("Marked for RMA conversion: %s", reason), "false", "true", now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	s.notify(notification.EventMarkedForConversion, actor, &updated, reason)
	return &updated, nil
}

func (s *DTRService) AssignTechnician(ctx context.Context, actor *models.Actor, id string, input *models.AssigneeInput) (*models.DTR, error) {
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionAssignTechnician, dtr); err != nil {
		return nil, err
	}
	if input.IsEmpty() {
		return nil, models.NewValidationError("assignee is required")
	}
	if dtr.Status != models.DTRStatusOpen && dtr.Status != models.DTRStatusInProgress {
		return nil, s.reject(actor, dtr, string(ActionAssignTechnician),
			models.NewValidationError("technicians can only be assigned to Open or In Progress cases, case is %s", dtr.Status))
	}

	now := s.now()
	updated := *dtr
	updated.AssignedTo = input.Normalize(models.RoleTechnician, now)
	updated.Status = models.DTRStatusInProgress

	details := fmt.Sprintf("Assigned to %s", updated.AssignedTo)
	if dtr.Status != updated.Status {
		details += fmt.Sprintf("; status %s -> %s", dtr.Status, updated.Status)
	}
	updated.AppendHistory(actor, models.HistoryActionAssigned, details, dtr.AssignedTo.String(), updated.AssignedTo.String(), now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	s.notify(notification.EventAssigned, actor, &updated, details)
	return &updated, nil
}

func (s *DTRService) AssignTechnicalHead(ctx context.Context, actor *models.Actor, id string, input *models.AssigneeInput) (*models.DTR, error) {
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionAssignTechnicalHead, dtr); err != nil {
		return nil, err
	}
	if input.IsEmpty() {
		return nil, models.NewValidationError("technical head is required")
	}
	if err := checkTransition(dtr, models.DTRStatusInProgress); err != nil {
		return nil, s.reject(actor, dtr, string(ActionAssignTechnicalHead), err)
	}

	now := s.now()
	updated := *dtr
	updated.AssignedTo = input.Normalize(models.RoleTechnicalHead, now)
	updated.Status = models.DTRStatusInProgress

	details := fmt.Sprintf("Escalated to technical head %s", updated.AssignedTo)
	updated.AppendHistory(actor, models.HistoryActionTechHead, details, dtr.AssignedTo.String(), updated.AssignedTo.String(), now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	s.notify(notification.EventEscalated, actor, &updated, details)
	return &updated, nil
}

func (s *DTRService) FinalizeByTechnicalHead(ctx context.Context, actor *models.Actor, id string, req *models.FinalizeRequest) (*models.DTR, error) {
	if req == nil {
		return nil, models.NewValidationError("finalize request is required")
	}
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionFinalizeTechnicalHead, dtr); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Handoff.IsEmpty() {
		return nil, models.NewValidationError("handoff rma_handler is required")
	}
	if err := checkTransition(dtr, models.DTRStatusReadyForRMA); err != nil {
		return nil, s.reject(actor, dtr, string(ActionFinalizeTechnicalHead), err)
	}

	now := s.now()
	updated := *dtr
	updated.ActionTaken = req.Resolution
	if req.Remarks != "" {
		updated.Remarks = req.Remarks
	}
	updated.Status = models.DTRStatusReadyForRMA
	updated.AssignedTo = req.Handoff.Normalize(models.RoleRMAHandler, now)

	details := fmt.Sprintf("Finalized by technical head, handed to %s: %s", updated.AssignedTo, req.Resolution)
	updated.AppendHistory(actor, models.HistoryActionFinalized, details, string(dtr.Status), string(updated.Status), now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	s.notify(notification.EventFinalized, actor, &updated, details)
	return &updated, nil
}

// UploadFiles records attachment metadata; the files live with the upload
// collaborator.
func (s *DTRService) UploadFiles(ctx context.Context, actor *models.Actor, id string, req *models.UploadFilesRequest) (*models.DTR, error) {
	if req == nil {
		return nil, models.NewValidationError("files are required")
	}
	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ActionUploadFiles, dtr); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	updated := *dtr
	updated.Attachments = append([]models.Attachment{}, dtr.Attachments...)
	names := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		f.UploadedBy = actor.DisplayName()
		f.UploadedAt = now
		updated.Attachments = append(updated.Attachments, f)
		names = append(names, f.Filename)
	}
	updated.AppendHistory(actor, models.HistoryActionFilesUploaded,
		fmt.Sprintf("%d file(s) uploaded: %s", len(names), strings.Join(names, ", ")), "", "", now)

	if err := s.commit(ctx, dtr, &updated, now); err != nil {
		return nil, err
	}
	return &updated, nil
}

// BulkDelete is the only way cases leave the store. Unknown ids are ignored,
// so repeating a call is harmless.
func (s *DTRService) BulkDelete(ctx context.Context, actor *models.Actor, ids []string) (*models.BulkDeleteResult, error) {
	if err := s.authorize(actor, ActionBulkDelete, nil); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, models.NewValidationError("at least one id is required")
	}

	limit := s.config.BulkDeleteMaxIDs
	if limit <= 0 {
		limit = defaultBulkDeleteMax
	}
	if len(unique) > limit {
		return nil, models.NewValidationError("at most %d ids may be deleted at once, got %d", limit, len(unique))
	}

	deleted, err := s.dtrRepo.DeleteDTRs(ctx, unique)
	if err != nil {
		return nil, models.NewPersistenceError(err, "bulk delete failed after %d deletions", deleted)
	}

	s.logger.Infof("Bulk delete by %s (%s): %d of %d removed", actor.DisplayName(), actor.Role, deleted, len(unique))
	return &models.BulkDeleteResult{
		DeletedCount:   deleted,
		RequestedCount: len(unique),
	}, nil
}

func (s *DTRService) load(ctx context.Context, id string) (*models.DTR, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewValidationError("dtr id is required")
	}
	dtr, err := s.dtrRepo.GetDTR(ctx, id)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to load dtr %s", id)
	}
	if dtr == nil {
		return nil, models.NewNotFoundError("dtr %s not found", id)
	}
	return dtr, nil
}

// commit writes updated if the stored case still carries original's
// updatedAt. A lost race is reported as Conflict and nothing is written.
func (s *DTRService) commit(ctx context.Context, original, updated *models.DTR, now time.Time) error {
	if !now.After(original.UpdatedAt) {
		now = original.UpdatedAt.Add(time.Millisecond)
	}
	updated.UpdatedAt = now

	ok, err := s.dtrRepo.UpdateDTR(ctx, updated, original.UpdatedAt)
	if err != nil {
		return models.NewPersistenceError(err, "failed to update dtr %s", original.CaseID)
	}
	if !ok {
		conflict := models.NewConflictError("dtr was modified concurrently, reload and retry")
		conflict.CaseID = original.CaseID
		return conflict
	}
	return nil
}

func (s *DTRService) authorize(actor *models.Actor, action Action, dtr *models.DTR) error {
	if err := Authorize(actor, action, dtr); err != nil {
		return s.reject(actor, dtr, string(action), err)
	}
	return nil
}

// reject logs a refused transition with enough context to replay it
func (s *DTRService) reject(actor *models.Actor, dtr *models.DTR, action string, err error) error {
	caseID := ""
	if dtr != nil {
		caseID = dtr.CaseID
	}
	userID, role := "", models.Role("")
	if actor != nil {
		userID, role = actor.UserID, actor.Role
	}
	s.logger.Warnf("Rejected %s on %s by %s (%s): %v", action, caseID, userID, role, err)
	return err
}

func (s *DTRService) notify(eventType notification.EventType, actor *models.Actor, dtr *models.DTR, details string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(notification.Event{
		Type:    eventType,
		CaseID:  dtr.CaseID,
		Actor:   actor,
		Details: details,
		DTR:     dtr,
	})
}

// applySnapshot copies site and unit fields onto the case. Unresolved parts
// get sentinel values; auditoriumOverride wins when the site has no match.
func applySnapshot(dtr *models.DTR, resolved *models.ResolvedUnit, auditoriumOverride string) {
	dtr.SiteName = models.UnknownSiteName
	dtr.SiteCode = models.UnknownSiteCode
	dtr.Region = models.UnknownRegion
	dtr.UnitModel = models.UnknownUnitModel
	dtr.Auditorium = models.UnknownAuditorium

	if resolved == nil {
		return
	}
	if resolved.Unit != nil && resolved.Unit.Model != "" {
		dtr.UnitModel = resolved.Unit.Model
	}
	if resolved.Site != nil {
		dtr.SiteName = resolved.Site.Name
		dtr.SiteCode = resolved.Site.SiteCode
		if resolved.Site.Region != "" {
			dtr.Region = resolved.Site.Region
		}
	}
	if resolved.Auditorium != nil {
		dtr.Auditorium = resolved.Auditorium.Label()
	} else if auditoriumOverride != "" {
		dtr.Auditorium = auditoriumOverride
	}
}

func closedByFor(actor *models.Actor, supplied *models.ClosedBy, now time.Time) *models.ClosedBy {
	closedBy := &models.ClosedBy{
		Name:        actor.DisplayName(),
		Designation: actor.Designation,
		Contact:     actor.Contact,
		UserID:      actor.UserID,
	}
	if supplied != nil {
		c := *supplied
		closedBy = &c
	}
	if closedBy.ClosedDate == nil {
		at := now
		closedBy.ClosedDate = &at
	}
	return closedBy
}

func touchesWorkflowFields(req *models.UpdateDTRRequest) bool {
	return req.Status != nil || req.ComplaintDescription != nil || req.ProblemName != nil ||
		req.ActionTaken != nil || req.ClosedReason != nil || req.Priority != nil ||
		req.CaseSeverity != nil || req.CallStatus != nil || req.ErrorDate != nil || req.ClosedBy != nil
}
