package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"
	"casetrack-backend/utils/logger"

	"github.com/google/uuid"
)

const (
	defaultConversionAttempts = 3
	defaultConversionDelay    = 200 * time.Millisecond
	defaultLeaseTTL           = 30 * time.Second
)

// ConversionService materializes an RMA from a DTR. The RMA is inserted
// first; the conditional DTR write (rmaCaseNumber still empty) is the commit
// point that decides which of two racing conversions wins.
type ConversionService struct {
	dtrRepo   repository.DTRRepositoryInterface
	rmaRepo   repository.RMARepositoryInterface
	assetRepo repository.AssetRepositoryInterface
	leases    repository.LeaseRepositoryInterface
	ids       *IDGenerator
	notifier  *notification.Dispatcher
	config    *models.Config
	logger    logger.Logger
	now       func() time.Time
}

func NewConversionService(
	dtrRepo repository.DTRRepositoryInterface,
	rmaRepo repository.RMARepositoryInterface,
	assetRepo repository.AssetRepositoryInterface,
	leases repository.LeaseRepositoryInterface,
	ids *IDGenerator,
	notifier *notification.Dispatcher,
	config *models.Config,
	logger logger.Logger,
) *ConversionService {
	return &ConversionService{
		dtrRepo:   dtrRepo,
		rmaRepo:   rmaRepo,
		assetRepo: assetRepo,
		leases:    leases,
		ids:       ids,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversionService) ConvertToRMA(ctx context.Context, actor *models.Actor, id string, req *models.ConvertToRMARequest) (*models.ConversionResult, error) {
	if req == nil {
		req = &models.ConvertToRMARequest{}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	dtr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionConvertToRMA, dtr); err != nil {
		s.logger.Warnf("Rejected conversion of %s by %s (%s): %v", dtr.CaseID, actor.DisplayName(), actor.Role, err)
		return nil, err
	}
	if dtr.RMACaseNumber != "" {
		return nil, models.NewAlreadyConvertedError(dtr.CaseID, dtr.RMACaseNumber)
	}
	if err := checkTransition(dtr, models.DTRStatusShiftedToRMA); err != nil {
		s.logger.Warnf("Rejected conversion of %s by %s (%s): %v", dtr.CaseID, actor.DisplayName(), actor.Role, err)
		return nil, err
	}

	release, err := s.acquireLease(ctx, dtr)
	if err != nil {
		return nil, err
	}
	defer release()

	// the lease may have been granted after another conversion finished
	dtr, err = s.load(ctx, dtr.ID)
	if err != nil {
		return nil, err
	}
	if dtr.RMACaseNumber != "" {
		return nil, models.NewAlreadyConvertedError(dtr.CaseID, dtr.RMACaseNumber)
	}

	var projector *models.Projector
	resolved, err := s.assetRepo.ResolveUnit(ctx, dtr.SerialNumber)
	if err != nil {
		s.logger.Warnf("Could not resolve unit %s for %s, converting without master data: %v", dtr.SerialNumber, dtr.CaseID, err)
	} else if resolved != nil {
		projector = resolved.Unit
	}

	rmaNumber, err := s.ids.NextRMANumber(ctx)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to generate rma number for %s", dtr.CaseID)
	}

	now := s.now()
	rma := BuildRMA(dtr, projector, actor, req, rmaNumber, now)
	if _, err := s.rmaRepo.CreateRMA(ctx, rma); err != nil {
		s.logger.Errorf("Conversion of %s by %s failed creating RMA: %v", dtr.CaseID, actor.DisplayName(), err)
		return nil, models.NewPersistenceError(err, "failed to create rma for %s", dtr.CaseID)
	}

	updated, rma, err := s.commit(ctx, actor, dtr, projector, rma, req, now)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("DTR %s converted to RMA %s by %s", updated.CaseID, rma.RMANumber, actor.DisplayName())
	if s.notifier != nil {
		s.notifier.Dispatch(notification.Event{
			Type:    notification.EventConverted,
			CaseID:  updated.CaseID,
			Actor:   actor,
			Details: fmt.Sprintf("Converted to RMA %s", rma.RMANumber),
			DTR:     updated,
			RMA:     rma,
		})
	}
	return &models.ConversionResult{DTR: updated, RMA: rma}, nil
}

// commit links the DTR to the new RMA, retrying transient failures. When
// another conversion already committed, the RMA created here is removed and
// AlreadyConverted carries the winner's number. When some other write landed
// first, the RMA is rebuilt from the fresh DTR and the link retried on it.
func (s *ConversionService) commit(ctx context.Context, actor *models.Actor, dtr *models.DTR, projector *models.Projector, rma *models.RMA, req *models.ConvertToRMARequest, now time.Time) (*models.DTR, *models.RMA, error) {
	attempts := s.config.ConversionRetryAttempts
	if attempts <= 0 {
		attempts = defaultConversionAttempts
	}
	delay := s.config.ConversionRetryDelay
	if delay <= 0 {
		delay = defaultConversionDelay
	}

	current := dtr
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		updated := shiftToRMA(current, actor, rma, req, now)

		ok, err := s.dtrRepo.LinkRMA(ctx, updated, current.UpdatedAt)
		if err == nil && ok {
			return updated, rma, nil
		}
		if err != nil {
			lastErr = err
			s.logger.Warnf("Linking %s to %s failed (attempt %d/%d): %v", dtr.CaseID, rma.RMANumber, attempt, attempts, err)
		}

		fresh, loadErr := s.dtrRepo.GetDTR(ctx, dtr.ID)
		if loadErr != nil {
			lastErr = loadErr
		} else if fresh == nil {
			s.discardRMA(rma)
			return nil, nil, models.NewNotFoundError("dtr %s was deleted during conversion", dtr.CaseID)
		} else if fresh.RMACaseNumber != "" {
			if fresh.RMACaseNumber == rma.RMANumber {
				// an earlier attempt landed but its response was lost
				return fresh, rma, nil
			}
			s.logger.Warnf("Conversion race on %s lost to %s, discarding %s", dtr.CaseID, fresh.RMACaseNumber, rma.RMANumber)
			s.discardRMA(rma)
			return nil, nil, models.NewAlreadyConvertedError(fresh.CaseID, fresh.RMACaseNumber)
		} else if !fresh.UpdatedAt.Equal(current.UpdatedAt) {
			s.logger.Warnf("DTR %s changed during conversion, rebuilding %s", dtr.CaseID, rma.RMANumber)
			rebuilt, err := s.rebuildRMA(ctx, actor, fresh, projector, rma, req, now)
			if err != nil {
				return nil, nil, err
			}
			rma = rebuilt
			current = fresh
			continue
		}

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.logger.Errorf("RMA %s exists but linking DTR %s was cancelled: %v", rma.RMANumber, dtr.CaseID, ctx.Err())
			return nil, nil, models.NewPersistenceError(ctx.Err(), "failed to link dtr %s to rma %s", dtr.CaseID, rma.RMANumber)
		}
	}

	if lastErr == nil {
		s.logger.Warnf("DTR %s kept changing during conversion, discarding %s", dtr.CaseID, rma.RMANumber)
		s.discardRMA(rma)
		conflict := models.NewConflictError("the case changed while it was being converted")
		conflict.CaseID = dtr.CaseID
		return nil, nil, conflict
	}
	s.logger.Errorf("RMA %s exists but DTR %s could not be linked to it: %v", rma.RMANumber, dtr.CaseID, lastErr)
	return nil, nil, models.NewPersistenceError(lastErr, "failed to link dtr %s to rma %s", dtr.CaseID, rma.RMANumber)
}

// rebuildRMA replaces the unlinked RMA with one built from the current DTR,
// keeping its id and number. A DTR that can no longer be converted drops it.
func (s *ConversionService) rebuildRMA(ctx context.Context, actor *models.Actor, fresh *models.DTR, projector *models.Projector, rma *models.RMA, req *models.ConvertToRMARequest, now time.Time) (*models.RMA, error) {
	if err := Authorize(actor, ActionConvertToRMA, fresh); err != nil {
		s.discardRMA(rma)
		return nil, err
	}
	if err := checkTransition(fresh, models.DTRStatusShiftedToRMA); err != nil {
		s.discardRMA(rma)
		return nil, err
	}

	rebuilt := BuildRMA(fresh, projector, actor, req, rma.RMANumber, now)
	rebuilt.ID = rma.ID
	if err := s.rmaRepo.DeleteRMA(ctx, rma.ID); err != nil {
		return nil, models.NewPersistenceError(err, "failed to replace rma %s", rma.RMANumber)
	}
	if _, err := s.rmaRepo.CreateRMA(ctx, rebuilt); err != nil {
		return nil, models.NewPersistenceError(err, "failed to replace rma %s", rma.RMANumber)
	}
	return rebuilt, nil
}

func (s *ConversionService) acquireLease(ctx context.Context, dtr *models.DTR) (func(), error) {
	noop := func() {}
	if s.leases == nil {
		return noop, nil
	}

	ttl := s.config.ConversionLeaseTTL
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	key := "convert:" + dtr.ID
	token, ok, err := s.leases.Acquire(ctx, key, ttl)
	if err != nil {
		s.logger.Warnf("Conversion lease unavailable for %s, relying on conditional write: %v", dtr.CaseID, err)
		return noop, nil
	}
	if !ok {
		conflict := models.NewConflictError("a conversion of this case is already in progress")
		conflict.CaseID = dtr.CaseID
		return nil, conflict
	}
	return func() {
		if err := s.leases.Release(context.Background(), key, token); err != nil {
			s.logger.Warnf("Failed to release conversion lease for %s: %v", dtr.CaseID, err)
		}
	}, nil
}

func (s *ConversionService) discardRMA(rma *models.RMA) {
	if err := s.rmaRepo.DeleteRMA(context.Background(), rma.ID); err != nil {
		s.logger.Errorf("Failed to discard orphaned RMA %s: %v", rma.RMANumber, err)
	}
}

func (s *ConversionService) load(ctx context.Context, id string) (*models.DTR, error) {
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

// shiftToRMA returns a copy of dtr in its converted state
func shiftToRMA(dtr *models.DTR, actor *models.Actor, rma *models.RMA, req *models.ConvertToRMARequest, now time.Time) *models.DTR {
	updated := *dtr
	updated.Status = models.DTRStatusShiftedToRMA
	updated.RMACaseNumber = rma.RMANumber
	updated.ClosedReason = models.ClosedReasonShiftedToRMA
	if !now.After(dtr.UpdatedAt) {
		now = dtr.UpdatedAt.Add(time.Millisecond)
	}
	updated.UpdatedAt = now

	convertedAt := now
	updated.ConversionToRMA.CanConvert = true
	updated.ConversionToRMA.ConvertedBy = actor.DisplayName()
	updated.ConversionToRMA.ConvertedDate = &convertedAt
	if req.Reason != "" {
		updated.ConversionToRMA.ConversionReason = req.Reason
	}
	if rma.AssignedTo != nil {
		updated.ConversionToRMA.RMAManagerAssigned = rma.AssignedTo.String()
	}
	updated.ClosedBy = &models.ClosedBy{
		Name:        actor.DisplayName(),
		Designation: actor.Designation,
		Contact:     actor.Contact,
		UserID:      actor.UserID,
		ClosedDate:  &convertedAt,
	}

	updated.WorkflowHistory = append([]models.WorkflowEntry{}, dtr.WorkflowHistory...)
	updated.AppendHistory(actor, models.HistoryActionConverted,
		fmt.Sprintf("Converted to RMA %s", rma.RMANumber), string(dtr.Status), rma.RMANumber, now)
	return &updated
}

// BuildRMA maps a DTR and its projector (nil when unresolved) onto a new RMA
func BuildRMA(dtr *models.DTR, projector *models.Projector, actor *models.Actor, req *models.ConvertToRMARequest, rmaNumber string, now time.Time) *models.RMA {
	reason := req.Reason
	if reason == "" {
		reason = dtr.ConversionToRMA.ConversionReason
	}
	technician := actor.DisplayName()
	if dtr.AssignedTo != nil && dtr.AssignedTo.Name != "" {
		technician = dtr.AssignedTo.Name
	}

	rma := &models.RMA{
		ID:                uuid.New().String(),
		RMANumber:         rmaNumber,
		CallLogNumber:     dtr.CaseID,
		Status:            models.RMAStatusUnderReview,
		Priority:          TranslatePriority(dtr.Priority),
		SerialNumber:      dtr.SerialNumber,
		ProductName:       dtr.UnitModel,
		SiteName:          dtr.SiteName,
		SiteCode:          dtr.SiteCode,
		Region:            dtr.Region,
		Auditorium:        dtr.Auditorium,
		DefectDescription: dtr.ComplaintDescription,
		Symptoms:          dtr.ProblemName,
		Notes:             SynthesizeNotes(dtr),
		WarrantyStatus:    WarrantyStatus(projector, now),
		OriginatedFromDTR: models.OriginatedFromDTR{
			DTRID:            dtr.ID,
			DTRCaseID:        dtr.CaseID,
			ConversionDate:   now,
			ConversionReason: reason,
			Technician:       technician,
		},
		CreatedBy: actor.DisplayName(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if projector != nil {
		rma.Brand = projector.Brand
		rma.ProductPartNumber = projector.PartNumber
		if projector.Model != "" {
			rma.ProductName = projector.Model
		}
	}
	if req.Assignment != nil {
		rma.AssignedTo = req.Assignment.Normalize(models.RoleRMAManager, now)
	}
	return rma
}

// TranslatePriority maps DTR priority onto the RMA scale, which has no
// Critical tier.
func TranslatePriority(p models.Priority) models.RMAPriority {
	switch p {
	case models.PriorityCritical, models.PriorityHigh:
		return models.RMAPriorityHigh
	case models.PriorityLow:
		return models.RMAPriorityLow
	default:
		return models.RMAPriorityMedium
	}
}

func WarrantyStatus(projector *models.Projector, now time.Time) string {
	if projector == nil || projector.WarrantyEnd == nil {
		return models.WarrantyUnknown
	}
	if projector.WarrantyEnd.After(now) {
		return models.WarrantyIn
	}
	return models.WarrantyOut
}

// SynthesizeNotes assembles the RMA notes from the DTR text fields and every
// troubleshooting step, in order.
func SynthesizeNotes(dtr *models.DTR) string {
	var parts []string
	if dtr.ComplaintDescription != "" {
		parts = append(parts, "Original complaint: "+dtr.ComplaintDescription)
	}
	if dtr.ActionTaken != "" {
		parts = append(parts, "Action taken: "+dtr.ActionTaken)
	}
	if dtr.Remarks != "" {
		parts = append(parts, "Remarks: "+dtr.Remarks)
	}
	if len(dtr.TroubleshootingSteps) > 0 {
		steps := make([]string, 0, len(dtr.TroubleshootingSteps))
		for _, step := range dtr.TroubleshootingSteps {
			steps = append(steps, fmt.Sprintf("Step %d: %s / Outcome: %s / performed by %s on %s",
				step.Step, step.Description, step.Outcome, step.PerformedBy, step.PerformedAt.UTC().Format("2006-01-02")))
		}
		parts = append(parts, "Troubleshooting history:\n"+strings.Join(steps, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
