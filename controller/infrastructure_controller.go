package controller

import (
	"net/http"

	"casetrack-backend/models"
	"casetrack-backend/services"
	"casetrack-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

type InfrastructureController struct {
	service services.InfrastructureServiceInterface
	config  *models.Config
	logger  logger.Logger
}

func NewInfrastructureController(service services.InfrastructureServiceInterface, cfg *models.Config, logger logger.Logger) *InfrastructureController {
	return &InfrastructureController{
		service: service,
		config:  cfg,
		logger:  logger,
	}
}

// Health handles GET /health. It reports 503 when the case store is
// unreachable.
func (h *InfrastructureController) Health(c *gin.Context) {
	data := gin.H{
		"status":  "healthy",
		"version": h.config.AppVersion,
		"service": h.config.AppName,
		"store":   h.config.StoreBackend,
	}

	if err := h.service.CheckStore(c.Request.Context()); err != nil {
		data["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Status:  "error",
			Code:    http.StatusServiceUnavailable,
			Message: "Case store is unreachable",
			Data:    data,
			Error: &models.APIError{
				Type:    string(models.KindOf(err)),
				Details: err.Error(),
			},
		})
		return
	}

	writeSuccess(c, http.StatusOK, "Service is healthy", data)
}

// GetWorkerStatus handles GET /infrastructure/status
func (h *InfrastructureController) GetWorkerStatus(c *gin.Context) {
	workerStatus, err := h.service.GetWorkerStatus(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "Failed to retrieve worker status", err)
		return
	}

	httpStatus, apiStatus := h.mapWorkerStatusToHTTP(workerStatus)
	c.JSON(httpStatus, models.APIResponse{
		Status:  apiStatus,
		Code:    httpStatus,
		Message: h.getStatusMessage(workerStatus),
		Data:    workerStatus,
	})
}

// CheckWorkerHealth handles GET /infrastructure/health
func (h *InfrastructureController) CheckWorkerHealth(c *gin.Context) {
	healthy, reason, err := h.service.IsWorkerHealthy()
	if err != nil {
		writeError(c, h.logger, "Failed to check worker health", err)
		return
	}

	healthStatus := "healthy"
	if !healthy {
		healthStatus = "unhealthy"
	}

	writeSuccess(c, http.StatusOK, "Worker health check completed", gin.H{
		"healthy": healthy,
		"status":  healthStatus,
		"reason":  reason,
	})
}

// RunProvisioning handles POST /infrastructure/provision
func (h *InfrastructureController) RunProvisioning(c *gin.Context) {
	result, err := h.service.RunProvisioning(c.Request.Context())
	if err != nil {
		if result != nil {
			h.logger.Errorf("Provisioning finished with errors: %v", err)
			c.JSON(http.StatusServiceUnavailable, models.APIResponse{
				Status:  "error",
				Code:    http.StatusServiceUnavailable,
				Message: "Provisioning failed",
				Data:    result,
				Error: &models.APIError{
					Type:    "WorkerError",
					Details: err.Error(),
				},
			})
			return
		}
		writeError(c, h.logger, "Failed to run provisioning", err)
		return
	}

	h.logger.Info("On-demand provisioning completed")
	writeSuccess(c, http.StatusOK, h.getStatusMessage(result), result)
}

// mapWorkerStatusToHTTP maps worker execution status to HTTP status codes
func (h *InfrastructureController) mapWorkerStatusToHTTP(ws *models.ExecutionResult) (int, string) {
	switch ws.Status {
	case models.StatusCompleted:
		if ws.Success {
			return http.StatusOK, "success"
		}
		return http.StatusOK, "warning"
	case models.StatusFailed:
		return http.StatusServiceUnavailable, "error"
	case models.StatusRunning:
		return http.StatusAccepted, "in_progress"
	default:
		return http.StatusOK, "info"
	}
}

// getStatusMessage provides human-readable status messages
func (h *InfrastructureController) getStatusMessage(ws *models.ExecutionResult) string {
	switch ws.Status {
	case models.StatusCompleted:
		if ws.Success {
			return "Case store tables are ready"
		}
		return "Table provisioning completed with warnings"
	case models.StatusFailed:
		return "Table provisioning failed"
	case models.StatusRunning:
		return "Table provisioning is running"
	case models.StatusSkipped:
		return "No table provisioning required"
	case models.StatusIdle:
		return "Table provisioning has not run yet"
	default:
		return "Worker status retrieved successfully"
	}
}
