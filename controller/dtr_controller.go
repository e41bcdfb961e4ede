package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"casetrack-backend/middelware"
	"casetrack-backend/models"
	"casetrack-backend/services"
	"casetrack-backend/utils/logger"
	"casetrack-backend/utils/sheet"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxUploadBytes  = 10 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type DTRController struct {
	dtrService services.DTRServiceInterface
	conversion services.ConversionServiceInterface
	imports    services.ImportServiceInterface
	logger     logger.Logger
}

func NewDTRController(
	dtrService services.DTRServiceInterface,
	conversion services.ConversionServiceInterface,
	imports services.ImportServiceInterface,
	logger logger.Logger,
) *DTRController {
	return &DTRController{
		dtrService: dtrService,
		conversion: conversion,
		imports:    imports,
		logger:     logger,
	}
}

// actor returns the authenticated caller or writes a 401
func (h *DTRController) actor(c *gin.Context) (*models.Actor, bool) {
	actor, ok := middelware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.APIResponse{
			Status:  "error",
			Code:    http.StatusUnauthorized,
			Message: "Authentication required",
			Error: &models.APIError{
				Type:    "AuthenticationError",
				Details: "User not authenticated",
			},
		})
	}
	return actor, ok
}

// bind decodes the JSON body into req. An empty body is accepted when
// optional is set.
func (h *DTRController) bind(c *gin.Context, req interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		h.logger.Errorf("Invalid request body for %s: %v", c.FullPath(), err)
		writeBadRequest(c, "Invalid request body", err.Error())
		return false
	}
	return true
}

// CreateDTR handles POST /dtr
func (h *DTRController) CreateDTR(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.CreateDTRRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.CreateDTR(c.Request.Context(), actor, &req)
	if err != nil {
		writeError(c, h.logger, "Failed to create DTR", err)
		return
	}

	h.logger.Infof("DTR %s created by %s", dtr.CaseID, actor.UserID)
	writeSuccess(c, http.StatusCreated, "DTR created successfully", dtr)
}

// ListDTRs handles GET /dtr
func (h *DTRController) ListDTRs(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	page := 1
	limit := defaultPageSize
	if pageParam := c.Query("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
			page = p
		}
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= maxPageSize {
			limit = l
		}
	}

	filter := &models.DTRFilter{
		Status:       models.DTRStatus(c.Query("status")),
		SerialNumber: c.Query("serialNumber"),
		SiteCode:     c.Query("siteCode"),
		AssignedTo:   c.Query("assignedTo"),
		Priority:     models.Priority(c.Query("priority")),
		Page:         page,
		Limit:        limit,
	}

	list, err := h.dtrService.ListDTRs(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, h.logger, "Failed to list DTRs", err)
		return
	}

	totalPages := (int(list.Total) + limit - 1) / limit
	writeSuccess(c, http.StatusOK, "DTRs retrieved successfully", map[string]interface{}{
		"dtrs": list.Items,
		"pagination": map[string]interface{}{
			"page":         page,
			"limit":        limit,
			"total":        list.Total,
			"total_pages":  totalPages,
			"has_next":     page < totalPages,
			"has_previous": page > 1,
		},
	})
}

// GetDTR handles GET /dtr/:id
func (h *DTRController) GetDTR(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	dtr, err := h.dtrService.GetDTR(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "Failed to get DTR", err)
		return
	}
	writeSuccess(c, http.StatusOK, "DTR retrieved successfully", dtr)
}

// UpdateDTR handles PATCH /dtr/:id
func (h *DTRController) UpdateDTR(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.UpdateDTRRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.UpdateDTR(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, "Failed to update DTR", err)
		return
	}
	writeSuccess(c, http.StatusOK, "DTR updated successfully", dtr)
}

// AddTroubleshootingStep handles POST /dtr/:id/troubleshooting
func (h *DTRController) AddTroubleshootingStep(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.TroubleshootingStepRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.AddTroubleshootingStep(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, "Failed to add troubleshooting step", err)
		return
	}
	writeSuccess(c, http.StatusOK, "Troubleshooting step added", dtr)
}

// MarkForConversion handles POST /dtr/:id/mark-for-conversion
func (h *DTRController) MarkForConversion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.MarkForConversionRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.MarkForConversion(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, h.logger, "Failed to mark DTR for conversion", err)
		return
	}
	writeSuccess(c, http.StatusOK, "DTR marked for RMA conversion", dtr)
}

// ConvertToRMA handles POST /dtr/:id/convert. The body is optional.
func (h *DTRController) ConvertToRMA(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.ConvertToRMARequest
	if !h.bind(c, &req, true) {
		return
	}

	result, err := h.conversion.ConvertToRMA(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, "Failed to convert DTR to RMA", err)
		return
	}

	h.logger.Infof("DTR %s converted to RMA %s by %s", result.DTR.CaseID, result.RMA.RMANumber, actor.UserID)
	writeSuccess(c, http.StatusCreated, "DTR converted to RMA", result)
}

// AssignTechnician handles POST /dtr/:id/assign-technician
func (h *DTRController) AssignTechnician(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.AssignRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.AssignTechnician(c.Request.Context(), actor, c.Param("id"), &req.Assignee)
	if err != nil {
		writeError(c, h.logger, "Failed to assign technician", err)
		return
	}
	writeSuccess(c, http.StatusOK, "Technician assigned", dtr)
}

// AssignTechnicalHead handles POST /dtr/:id/assign-technical-head
func (h *DTRController) AssignTechnicalHead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.AssignRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.AssignTechnicalHead(c.Request.Context(), actor, c.Param("id"), &req.Assignee)
	if err != nil {
		writeError(c, h.logger, "Failed to assign technical head", err)
		return
	}
	writeSuccess(c, http.StatusOK, "Technical head assigned", dtr)
}

// FinalizeByTechnicalHead handles POST /dtr/:id/finalize
func (h *DTRController) FinalizeByTechnicalHead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.FinalizeRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.FinalizeByTechnicalHead(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, "Failed to finalize DTR", err)
		return
	}
	writeSuccess(c, http.StatusOK, "DTR finalized", dtr)
}

// UploadFiles handles POST /dtr/:id/attachments
func (h *DTRController) UploadFiles(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.UploadFilesRequest
	if !h.bind(c, &req, false) {
		return
	}

	dtr, err := h.dtrService.UploadFiles(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, "Failed to attach files", err)
		return
	}
	writeSuccess(c, http.StatusOK, "Files attached", dtr)
}

// BulkDelete handles POST /dtr/bulk-delete
func (h *DTRController) BulkDelete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.BulkDeleteRequest
	if !h.bind(c, &req, false) {
		return
	}

	result, err := h.dtrService.BulkDelete(c.Request.Context(), actor, req.IDs)
	if err != nil {
		writeError(c, h.logger, "Failed to delete DTRs", err)
		return
	}
	writeSuccess(c, http.StatusOK, fmt.Sprintf("%d DTRs deleted", result.DeletedCount), result)
}

// BulkImport handles POST /dtr/import with JSON rows
func (h *DTRController) BulkImport(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.BulkImportRequest
	if !h.bind(c, &req, false) {
		return
	}
	h.runImport(c, actor, req.Rows)
}

// BulkImportSpreadsheet handles POST /dtr/import/xlsx with a multipart
// "file" field
func (h *DTRController) BulkImportSpreadsheet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		writeBadRequest(c, "Spreadsheet upload required", err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		writeBadRequest(c, "Failed to open uploaded spreadsheet", err.Error())
		return
	}
	defer file.Close()

	rows, err := sheet.ReadRows(file)
	if err != nil {
		h.logger.Errorf("Failed to read spreadsheet %s: %v", header.Filename, err)
		writeBadRequest(c, "Failed to read spreadsheet", err.Error())
		return
	}

	h.logger.Infof("Read %d rows from %s", len(rows), header.Filename)
	h.runImport(c, actor, rows)
}

func (h *DTRController) runImport(c *gin.Context, actor *models.Actor, rows []models.ImportRow) {
	result, err := h.imports.BulkImport(c.Request.Context(), actor, rows)
	if err != nil {
		writeError(c, h.logger, "Bulk import failed", err)
		return
	}

	message := fmt.Sprintf("Imported %d of %d rows", result.Imported, len(rows))
	if result.TimedOut {
		message += fmt.Sprintf("; timed out with %d rows skipped", result.Skipped)
	}
	writeSuccess(c, http.StatusOK, message, result)
}

// ImportTemplate handles GET /dtr/import/template
func (h *DTRController) ImportTemplate(c *gin.Context) {
	f, err := sheet.Template()
	if err != nil {
		writeError(c, h.logger, "Failed to build import template", err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(c, h.logger, "Failed to build import template", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="dtr_import_template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
