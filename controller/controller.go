package controller

import (
	"errors"
	"net/http"

	"casetrack-backend/middelware"
	"casetrack-backend/models"
	"casetrack-backend/services"
	"casetrack-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	DTR            *DTRController
	Infrastructure *InfrastructureController
	jwtManager     *middelware.JWTManager
	cors           *middelware.CORSMiddleware
	logging        *middelware.LoggingMiddleware
	config         *models.Config
}

func NewController(svc services.ServiceContainerInterface, cfg *models.Config, log logger.Logger) *Controller {
	return &Controller{
		DTR:            NewDTRController(svc.GetDTRService(), svc.GetConversionService(), svc.GetImportService(), log),
		Infrastructure: NewInfrastructureController(svc.GetInfrastructureService(), cfg, log),
		jwtManager:     middelware.NewJWTManager(cfg, log),
		cors:           middelware.NewCORSMiddleware(cfg),
		logging:        middelware.NewLoggingMiddleware(log, cfg.BasePath+"/health"),
		config:         cfg,
	}
}

// RegisterRoutes mounts every endpoint under basePath
func (c *Controller) RegisterRoutes(r *gin.Engine, basePath string) {
	r.Use(c.logging.Recovery(), c.logging.StructuredLogger(), c.cors.CORS())

	v1 := r.Group(basePath)

	// Health check endpoint (no auth required)
	v1.GET("/health", c.Infrastructure.Health)

	auth := c.jwtManager.AuthMiddleware()

	dtr := v1.Group("/dtr", auth)
	dtr.POST("", c.DTR.CreateDTR)
	dtr.GET("", c.DTR.ListDTRs)
	dtr.POST("/import", c.DTR.BulkImport)
	dtr.POST("/import/xlsx", c.DTR.BulkImportSpreadsheet)
	dtr.GET("/import/template", c.DTR.ImportTemplate)
	dtr.POST("/bulk-delete", c.DTR.BulkDelete)
	dtr.GET("/:id", c.DTR.GetDTR)
	dtr.PATCH("/:id", c.DTR.UpdateDTR)
	dtr.POST("/:id/troubleshooting", c.DTR.AddTroubleshootingStep)
	dtr.POST("/:id/mark-for-conversion", c.DTR.MarkForConversion)
	dtr.POST("/:id/convert", c.DTR.ConvertToRMA)
	dtr.POST("/:id/assign-technician", c.DTR.AssignTechnician)
	dtr.POST("/:id/assign-technical-head", c.DTR.AssignTechnicalHead)
	dtr.POST("/:id/finalize", c.DTR.FinalizeByTechnicalHead)
	dtr.POST("/:id/attachments", c.DTR.UploadFiles)

	infra := v1.Group("/infrastructure", auth, c.jwtManager.RequireRole(models.RoleAdmin))
	infra.GET("/status", c.Infrastructure.GetWorkerStatus)
	infra.GET("/health", c.Infrastructure.CheckWorkerHealth)
	infra.POST("/provision", c.Infrastructure.RunProvisioning)
}

// statusForKind maps service error kinds onto HTTP status codes
var statusForKind = map[models.ErrorKind]int{
	models.KindValidation:       http.StatusBadRequest,
	models.KindNotFound:         http.StatusNotFound,
	models.KindUnauthorized:     http.StatusForbidden,
	models.KindAlreadyConverted: http.StatusConflict,
	models.KindPersistence:      http.StatusInternalServerError,
	models.KindImportRow:        http.StatusUnprocessableEntity,
	models.KindTimeout:          http.StatusGatewayTimeout,
	models.KindConflict:         http.StatusConflict,
}

func writeError(c *gin.Context, log logger.Logger, message string, err error) {
	kind := models.KindOf(err)
	status, ok := statusForKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", message, err)
	} else {
		log.Warnf("%s: %v", message, err)
	}

	response := models.APIResponse{
		Status:  "error",
		Code:    status,
		Message: message,
		Error: &models.APIError{
			Type:    string(kind),
			Details: err.Error(),
		},
	}
	// AlreadyConverted carries the RMA number of the earlier conversion
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.RMANumber != "" {
		response.Data = gin.H{"caseId": appErr.CaseID, "rmaNumber": appErr.RMANumber}
	}

	c.JSON(status, response)
}

func writeBadRequest(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Status:  "error",
		Code:    http.StatusBadRequest,
		Message: message,
		Error: &models.APIError{
			Type:    string(models.KindValidation),
			Details: details,
		},
	})
}

func writeSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.APIResponse{
		Status:  "success",
		Code:    status,
		Message: message,
		Data:    data,
	})
}
