package services

import (
	"context"
	"fmt"
	"time"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/utils/logger"
)

const maxProvisioningRuntime = 30 * time.Minute

// ProvisioningWorker is the background table provisioner
type ProvisioningWorker interface {
	GetStatus() (*models.ExecutionResult, error)
	RunNow(ctx context.Context) (*models.ExecutionResult, error)
	IsRunning() bool
}

type InfrastructureService struct {
	store  dal.CaseStoreInterface
	worker ProvisioningWorker
	logger logger.Logger
	config *models.Config
}

func NewInfrastructureService(store dal.CaseStoreInterface, worker ProvisioningWorker, logger logger.Logger, config *models.Config) *InfrastructureService {
	return &InfrastructureService{
		store:  store,
		worker: worker,
		logger: logger,
		config: config,
	}
}

// GetWorkerStatus returns the last provisioning result with health context
func (s *InfrastructureService) GetWorkerStatus(ctx context.Context) (*models.ExecutionResult, error) {
	s.logger.Debug("Getting provisioning worker status")

	if s.worker == nil {
		return &models.ExecutionResult{
			Success:      true,
			Status:       models.StatusSkipped,
			Environment:  s.config.AppEnv,
			HealthStatus: "healthy",
			NextAction:   fmt.Sprintf("Store backend %s needs no provisioning", s.config.StoreBackend),
		}, nil
	}

	result, err := s.worker.GetStatus()
	if err != nil {
		return nil, err
	}
	s.updateHealthIndicators(result)
	return result, nil
}

// RunProvisioning runs the provisioner immediately
func (s *InfrastructureService) RunProvisioning(ctx context.Context) (*models.ExecutionResult, error) {
	if s.worker == nil {
		return nil, models.NewValidationError("store backend %s has no tables to provision", s.config.StoreBackend)
	}
	if s.worker.IsRunning() {
		return nil, models.NewConflictError("provisioning is already running")
	}

	s.logger.Info("Running table provisioning on demand")
	result, err := s.worker.RunNow(ctx)
	if result != nil {
		s.updateHealthIndicators(result)
	}
	return result, err
}

// IsWorkerHealthy checks if worker is in a healthy state
func (s *InfrastructureService) IsWorkerHealthy() (bool, string, error) {
	if s.worker == nil {
		return true, "No provisioning required", nil
	}

	workerStatus, err := s.worker.GetStatus()
	if err != nil {
		return false, "Cannot read worker status", err
	}

	switch workerStatus.Status {
	case models.StatusCompleted:
		if workerStatus.Success {
			return true, "Worker completed successfully", nil
		}
		return false, "Worker completed with errors", nil
	case models.StatusRunning:
		if time.Since(workerStatus.StartTime) > maxProvisioningRuntime {
			return false, "Worker running too long", nil
		}
		return true, "Worker is running normally", nil
	case models.StatusFailed:
		return false, fmt.Sprintf("Worker failed: %s", workerStatus.ErrorMessage), nil
	case models.StatusSkipped, models.StatusIdle:
		return true, "Worker is idle", nil
	default:
		return false, "Worker status unknown", nil
	}
}

// CheckStore pings the case store
func (s *InfrastructureService) CheckStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Errorf("Case store ping failed: %v", err)
		return models.NewPersistenceError(err, "case store is unreachable")
	}
	return nil
}

// updateHealthIndicators sets health status based on execution state
func (s *InfrastructureService) updateHealthIndicators(result *models.ExecutionResult) {
	switch result.Status {
	case models.StatusCompleted:
		if result.Success {
			result.HealthStatus = "healthy"
			result.NextAction = "Tables are ready for use"
		} else {
			result.HealthStatus = "degraded"
			result.NextAction = "Inspect failed tables"
		}
	case models.StatusRunning:
		if time.Since(result.StartTime) > maxProvisioningRuntime {
			result.HealthStatus = "degraded"
		} else {
			result.HealthStatus = "provisioning"
		}
		result.NextAction = "Table provisioning is in progress"
	case models.StatusFailed:
		result.HealthStatus = "unhealthy"
		result.NextAction = "Will retry on the next scheduled run"
	case models.StatusSkipped, models.StatusIdle:
		result.HealthStatus = "healthy"
		result.NextAction = "Waiting for the next scheduled run"
	default:
		result.HealthStatus = "unknown"
	}
}
