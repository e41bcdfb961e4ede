package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"casetrack-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type InfrastructureControllerTestSuite struct {
	suite.Suite
	infraController *InfrastructureController
	mockService     *MockInfrastructureService
	router          *gin.Engine
}

func (suite *InfrastructureControllerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.mockService = &MockInfrastructureService{}
	config := &models.Config{AppName: "casetrack", AppVersion: "1.2.0", StoreBackend: "dynamodb"}
	suite.infraController = NewInfrastructureController(suite.mockService, config, newMockLogger())

	suite.router = gin.New()
	suite.router.GET("/infrastructure/status", suite.infraController.GetWorkerStatus)
	suite.router.GET("/health", suite.infraController.Health)
}

func (suite *InfrastructureControllerTestSuite) TearDownTest() {
	suite.mockService.AssertExpectations(suite.T())
}

func TestInfrastructureControllerTestSuite(t *testing.T) {
	suite.Run(t, new(InfrastructureControllerTestSuite))
}

func (suite *InfrastructureControllerTestSuite) get(path string) (*httptest.ResponseRecorder, models.APIResponse) {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response models.APIResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func (suite *InfrastructureControllerTestSuite) TestGetWorkerStatusFailed() {
	suite.mockService.On("GetWorkerStatus").Return(&models.ExecutionResult{
		Status:       models.StatusFailed,
		ErrorMessage: "AccessDeniedException",
	}, nil).Once()

	w, response := suite.get("/infrastructure/status")

	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.Equal(suite.T(), "error", response.Status)
	assert.Equal(suite.T(), "Table provisioning failed", response.Message)
}

func (suite *InfrastructureControllerTestSuite) TestGetWorkerStatusServiceError() {
	suite.mockService.On("GetWorkerStatus").Return(nil, errors.New("status file unreadable")).Once()

	w, response := suite.get("/infrastructure/status")

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(suite.T(), "Failed to retrieve worker status", response.Message)
}

func (suite *InfrastructureControllerTestSuite) TestHealthReportsVersion() {
	suite.mockService.On("CheckStore").Return(nil).Once()

	w, response := suite.get("/health")

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response.Data.(map[string]interface{})
	assert.Equal(suite.T(), "1.2.0", data["version"])
	assert.Equal(suite.T(), "dynamodb", data["store"])
}

func (suite *InfrastructureControllerTestSuite) TestMapWorkerStatusToHTTP() {
	testCases := []struct {
		name            string
		executionResult *models.ExecutionResult
		expectedCode    int
		expectedStatus  string
	}{
		{
			name:            "Completed Successfully",
			executionResult: &models.ExecutionResult{Status: models.StatusCompleted, Success: true},
			expectedCode:    http.StatusOK,
			expectedStatus:  "success",
		},
		{
			name:            "Completed with Issues",
			executionResult: &models.ExecutionResult{Status: models.StatusCompleted, Success: false},
			expectedCode:    http.StatusOK,
			expectedStatus:  "warning",
		},
		{
			name:            "Failed",
			executionResult: &models.ExecutionResult{Status: models.StatusFailed},
			expectedCode:    http.StatusServiceUnavailable,
			expectedStatus:  "error",
		},
		{
			name:            "Running",
			executionResult: &models.ExecutionResult{Status: models.StatusRunning},
			expectedCode:    http.StatusAccepted,
			expectedStatus:  "in_progress",
		},
		{
			name:            "Skipped",
			executionResult: &models.ExecutionResult{Status: models.StatusSkipped, Success: true},
			expectedCode:    http.StatusOK,
			expectedStatus:  "info",
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			code, status := suite.infraController.mapWorkerStatusToHTTP(tc.executionResult)
			assert.Equal(suite.T(), tc.expectedCode, code)
			assert.Equal(suite.T(), tc.expectedStatus, status)
		})
	}
}

func (suite *InfrastructureControllerTestSuite) TestGetStatusMessage() {
	testCases := []struct {
		name            string
		executionResult *models.ExecutionResult
		expectedMessage string
	}{
		{
			name:            "Completed Successfully",
			executionResult: &models.ExecutionResult{Status: models.StatusCompleted, Success: true},
			expectedMessage: "Case store tables are ready",
		},
		{
			name:            "Completed with Warnings",
			executionResult: &models.ExecutionResult{Status: models.StatusCompleted},
			expectedMessage: "Table provisioning completed with warnings",
		},
		{
			name:            "Failed",
			executionResult: &models.ExecutionResult{Status: models.StatusFailed},
			expectedMessage: "Table provisioning failed",
		},
		{
			name:            "Running",
			executionResult: &models.ExecutionResult{Status: models.StatusRunning},
			expectedMessage: "Table provisioning is running",
		},
		{
			name:            "Skipped",
			executionResult: &models.ExecutionResult{Status: models.StatusSkipped},
			expectedMessage: "No table provisioning required",
		},
		{
			name:            "Idle",
			executionResult: &models.ExecutionResult{Status: models.StatusIdle},
			expectedMessage: "Table provisioning has not run yet",
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			message := suite.infraController.getStatusMessage(tc.executionResult)
			assert.Equal(suite.T(), tc.expectedMessage, message)
		})
	}
}
