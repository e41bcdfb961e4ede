package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casetrack-backend/dal"
	"casetrack-backend/infrastructure"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	TableExists  = "EXISTS"
	TableCreated = "CREATED"
	TableFailed  = "FAILED"
	TableDryRun  = "DRY_RUN"
)

// TableStore is a store whose tables are provisioned ahead of time
type TableStore interface {
	dal.TableAdminInterface
	TableName(entity models.EntityType) string
}

// Provisioner creates missing case store tables from the embedded schema
type Provisioner struct {
	store             TableStore
	entities          []models.EntityType
	dryRun            bool
	pollInterval      time.Duration
	activationTimeout time.Duration
	logger            logger.Logger
}

func NewProvisioner(store TableStore, entities []models.EntityType, dryRun bool, log logger.Logger) *Provisioner {
	return &Provisioner{
		store:             store,
		entities:          entities,
		dryRun:            dryRun,
		pollInterval:      2 * time.Second,
		activationTimeout: 5 * time.Minute,
		logger:            log,
	}
}

// Execute ensures every table exists. All tables are attempted; the
// returned error joins the individual failures.
func (p *Provisioner) Execute(ctx context.Context, result *models.ExecutionResult) error {
	var errs []error
	for _, entity := range p.entities {
		tableName := p.store.TableName(entity)
		status, err := p.ensureTable(ctx, entity, tableName)
		if err != nil {
			p.logger.Errorf("Failed to provision table %s: %v", tableName, err)
			errs = append(errs, fmt.Errorf("table %s: %w", tableName, err))
			status = TableFailed
		}
		recordTable(result, tableName, status)
	}
	return errors.Join(errs...)
}

func (p *Provisioner) ensureTable(ctx context.Context, entity models.EntityType, tableName string) (string, error) {
	out, err := p.store.DescribeTable(ctx, tableName)
	if err == nil {
		if out.Table != nil && out.Table.TableStatus != types.TableStatusActive {
			return TableExists, p.waitForActive(ctx, tableName)
		}
		p.logger.Debugf("Table %s already exists", tableName)
		return TableExists, nil
	}
	if !dal.IsTableNotFound(err) {
		return "", fmt.Errorf("failed to describe table: %w", err)
	}

	input, err := infrastructure.GetTable(entity, tableName)
	if err != nil {
		return "", err
	}
	if p.dryRun {
		p.logger.Infof("Dry run: would create table %s", tableName)
		return TableDryRun, nil
	}

	p.logger.Infof("Creating table %s", tableName)
	if err := p.store.CreateTable(ctx, input); err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return "", fmt.Errorf("failed to create table: %w", err)
		}
		p.logger.Infof("Table %s is being created by another instance", tableName)
	}
	if err := p.waitForActive(ctx, tableName); err != nil {
		return "", err
	}
	p.logger.Infof("Table %s created", tableName)
	return TableCreated, nil
}

func (p *Provisioner) waitForActive(ctx context.Context, tableName string) error {
	ctx, cancel := context.WithTimeout(ctx, p.activationTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		out, err := p.store.DescribeTable(ctx, tableName)
		if err != nil && !dal.IsTableNotFound(err) {
			return fmt.Errorf("failed to describe table: %w", err)
		}
		if err == nil && out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("table %s did not become active: %w", tableName, ctx.Err())
		}
	}
}

func recordTable(result *models.ExecutionResult, name, status string) {
	entry := models.TableStatus{Name: name, Status: status, CheckedAt: time.Now()}
	for i := range result.TablesCreated {
		if result.TablesCreated[i].Name == name {
			result.TablesCreated[i] = entry
			return
		}
	}
	result.TablesCreated = append(result.TablesCreated, entry)
}
