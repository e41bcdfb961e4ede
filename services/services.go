package services

import (
	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"
	"casetrack-backend/utils/logger"
)

// Service implements ServiceContainerInterface
type Service struct {
	dtrService            DTRServiceInterface
	conversionService     ConversionServiceInterface
	importService         ImportServiceInterface
	infrastructureService InfrastructureServiceInterface
}

// NewService creates a new service container with all dependencies injected.
// provisioner may be nil when the store needs no table provisioning.
func NewService(
	repoContainer repository.RepositoryContainerInterface,
	store dal.CaseStoreInterface,
	provisioner ProvisioningWorker,
	notifier *notification.Dispatcher,
	logger logger.Logger,
	config *models.Config,
) ServiceContainerInterface {
	dtrRepo := repoContainer.GetDTRRepository()
	rmaRepo := repoContainer.GetRMARepository()
	assetRepo := repoContainer.GetAssetRepository()

	ids := NewIDGenerator(repoContainer.GetSequenceRepository(), dtrRepo, rmaRepo, logger)

	return &Service{
		dtrService:            NewDTRService(dtrRepo, assetRepo, ids, notifier, config, logger),
		conversionService:     NewConversionService(dtrRepo, rmaRepo, assetRepo, repoContainer.GetLeaseRepository(), ids, notifier, config, logger),
		importService:         NewImportService(dtrRepo, assetRepo, ids, notifier, config, logger),
		infrastructureService: NewInfrastructureService(store, provisioner, logger, config),
	}
}

// GetDTRService returns the DTR service interface
func (s *Service) GetDTRService() DTRServiceInterface {
	return s.dtrService
}

// GetConversionService returns the conversion service interface
func (s *Service) GetConversionService() ConversionServiceInterface {
	return s.conversionService
}

// GetImportService returns the import service interface
func (s *Service) GetImportService() ImportServiceInterface {
	return s.importService
}

// GetInfrastructureService returns the infrastructure service interface
func (s *Service) GetInfrastructureService() InfrastructureServiceInterface {
	return s.infrastructureService
}
