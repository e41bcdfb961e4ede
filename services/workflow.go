package services

import (
	"casetrack-backend/models"
)

// transitions lists the status changes the state machine accepts. Terminal
// statuses have no entry.
var transitions = map[models.DTRStatus][]models.DTRStatus{
	models.DTRStatusOpen: {
		models.DTRStatusInProgress,
		models.DTRStatusClosed,
		models.DTRStatusShiftedToRMA,
	},
	models.DTRStatusInProgress: {
		models.DTRStatusInProgress,
		models.DTRStatusReadyForRMA,
		models.DTRStatusClosed,
		models.DTRStatusShiftedToRMA,
		models.DTRStatusUnableToResolve,
	},
	models.DTRStatusReadyForRMA: {
		models.DTRStatusInProgress,
		models.DTRStatusShiftedToRMA,
		models.DTRStatusClosed,
	},
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to models.DTRStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns a ValidationError for an illegal status change
func checkTransition(dtr *models.DTR, to models.DTRStatus) error {
	if dtr.Status.IsTerminal() {
		err := models.NewValidationError("case is %s and accepts no further transitions", dtr.Status)
		err.CaseID = dtr.CaseID
		return err
	}
	if !CanTransition(dtr.Status, to) {
		err := models.NewValidationError("cannot move case from %s to %s", dtr.Status, to)
		err.CaseID = dtr.CaseID
		return err
	}
	return nil
}

func isKnownStatus(s models.DTRStatus) bool {
	switch s {
	case models.DTRStatusOpen, models.DTRStatusInProgress, models.DTRStatusReadyForRMA,
		models.DTRStatusClosed, models.DTRStatusShiftedToRMA, models.DTRStatusUnableToResolve:
		return true
	}
	return false
}
