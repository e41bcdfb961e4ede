package services

import (
	"context"
	"fmt"
	"time"

	"casetrack-backend/repository"
	"casetrack-backend/utils/logger"
)

const idGenerationAttempts = 5

// IDGenerator produces human-readable case identifiers. Sequence numbers are
// preferred; a millisecond timestamp is used when no sequence is reachable.
type IDGenerator struct {
	sequences repository.SequenceRepositoryInterface
	dtrRepo   repository.DTRRepositoryInterface
	rmaRepo   repository.RMARepositoryInterface
	logger    logger.Logger
	now       func() time.Time
}

func NewIDGenerator(sequences repository.SequenceRepositoryInterface, dtrRepo repository.DTRRepositoryInterface, rmaRepo repository.RMARepositoryInterface, log logger.Logger) *IDGenerator {
	return &IDGenerator{
		sequences: sequences,
		dtrRepo:   dtrRepo,
		rmaRepo:   rmaRepo,
		logger:    log,
		now:       time.Now,
	}
}

// NextCaseID returns an unused DTR-<seq> identifier
func (g *IDGenerator) NextCaseID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < idGenerationAttempts; attempt++ {
		var id string
		if n, err := g.next(ctx, "dtr"); err == nil {
			id = fmt.Sprintf("DTR-%06d", n)
		} else {
			id = fmt.Sprintf("DTR-%d", g.now().UnixMilli()+int64(attempt))
		}

		exists, err := g.dtrRepo.CaseIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		g.logger.Warnf("Generated caseId %s already taken, retrying", id)
	}
	return "", fmt.Errorf("could not generate a unique caseId after %d attempts", idGenerationAttempts)
}

// NextRMANumber returns an unused RMA-<yyyy>-<seq> identifier
func (g *IDGenerator) NextRMANumber(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()
	for attempt := 0; attempt < idGenerationAttempts; attempt++ {
		var number string
		if n, err := g.next(ctx, fmt.Sprintf("rma-%d", year)); err == nil {
			number = fmt.Sprintf("RMA-%d-%06d", year, n)
		} else {
			number = fmt.Sprintf("RMA-%d", g.now().UnixMilli()+int64(attempt))
		}

		exists, err := g.rmaRepo.RMANumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		g.logger.Warnf("Generated rmaNumber %s already taken, retrying", number)
	}
	return "", fmt.Errorf("could not generate a unique rmaNumber after %d attempts", idGenerationAttempts)
}

// PlaceholderSerial names a unit for an imported row that has none
func (g *IDGenerator) PlaceholderSerial(rowIndex int) string {
	return fmt.Sprintf("IMPORT-%d-%d", g.now().UnixMilli(), rowIndex)
}

func (g *IDGenerator) next(ctx context.Context, name string) (int64, error) {
	if g.sequences == nil {
		return 0, fmt.Errorf("no sequence source")
	}
	n, err := g.sequences.Next(ctx, name)
	if err != nil {
		g.logger.Warnf("Sequence %s unavailable, falling back to timestamp: %v", name, err)
	}
	return n, err
}
