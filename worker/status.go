package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"casetrack-backend/models"
)

// StatusManager persists the last provisioning result to a status file
type StatusManager struct {
	statusFilePath string
	mu             sync.Mutex
}

// NewStatusManager creates a new status manager
func NewStatusManager(statusPath string) *StatusManager {
	return &StatusManager{statusFilePath: statusPath}
}

func (sm *StatusManager) SaveStatus(result *models.ExecutionResult) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(sm.statusFilePath), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	if result.EndTime == nil && (result.Status == models.StatusCompleted || result.Status == models.StatusFailed) {
		now := time.Now()
		result.EndTime = &now
		result.Duration = now.Sub(result.StartTime)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return writeAtomic(sm.statusFilePath, data)
}

// LoadStatus returns the saved result. A missing file means the worker has
// not run yet and yields an idle result.
func (sm *StatusManager) LoadStatus() (*models.ExecutionResult, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := os.ReadFile(sm.statusFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.ExecutionResult{
				Status:        models.StatusIdle,
				TablesCreated: []models.TableStatus{},
				Metadata:      map[string]interface{}{},
			}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &result, nil
}

// ResetStatus removes the status file
func (sm *StatusManager) ResetStatus() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := os.Remove(sm.statusFilePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
