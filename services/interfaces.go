package services

import (
	"context"

	"casetrack-backend/models"
)

// DTRServiceInterface defines the contract for the DTR workflow service
type DTRServiceInterface interface {
	CreateDTR(ctx context.Context, actor *models.Actor, req *models.CreateDTRRequest) (*models.DTR, error)
	GetDTR(ctx context.Context, actor *models.Actor, id string) (*models.DTR, error)
	ListDTRs(ctx context.Context, actor *models.Actor, filter *models.DTRFilter) (*models.DTRList, error)
	UpdateDTR(ctx context.Context, actor *models.Actor, id string, req *models.UpdateDTRRequest) (*models.DTR, error)
	AddTroubleshootingStep(ctx context.Context, actor *models.Actor, id string, req *models.TroubleshootingStepRequest) (*models.DTR, error)
	MarkForConversion(ctx context.Context, actor *models.Actor, id string, reason string) (*models.DTR, error)
	AssignTechnician(ctx context.Context, actor *models.Actor, id string, input *models.AssigneeInput) (*models.DTR, error)
	AssignTechnicalHead(ctx context.Context, actor *models.Actor, id string, input *models.AssigneeInput) (*models.DTR, error)
	FinalizeByTechnicalHead(ctx context.Context, actor *models.Actor, id string, req *models.FinalizeRequest) (*models.DTR, error)
	UploadFiles(ctx context.Context, actor *models.Actor, id string, req *models.UploadFilesRequest) (*models.DTR, error)
	BulkDelete(ctx context.Context, actor *models.Actor, ids []string) (*models.BulkDeleteResult, error)
}

// ConversionServiceInterface defines the contract for DTR to RMA conversion
type ConversionServiceInterface interface {
	ConvertToRMA(ctx context.Context, actor *models.Actor, id string, req *models.ConvertToRMARequest) (*models.ConversionResult, error)
}

// ImportServiceInterface defines the contract for spreadsheet imports
type ImportServiceInterface interface {
	BulkImport(ctx context.Context, actor *models.Actor, rows []models.ImportRow) (*models.ImportResult, error)
}

// InfrastructureServiceInterface defines the contract for infrastructure service
type InfrastructureServiceInterface interface {
	GetWorkerStatus(ctx context.Context) (*models.ExecutionResult, error)
	RunProvisioning(ctx context.Context) (*models.ExecutionResult, error)
	IsWorkerHealthy() (bool, string, error)
	CheckStore(ctx context.Context) error
}

// ServiceContainerInterface defines the main service container contract
type ServiceContainerInterface interface {
	GetDTRService() DTRServiceInterface
	GetConversionService() ConversionServiceInterface
	GetImportService() ImportServiceInterface
	GetInfrastructureService() InfrastructureServiceInterface
}
