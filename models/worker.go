package models

import "time"

// WorkerConfig holds configuration for the provisioning worker
type WorkerConfig struct {
	CronSchedule      string        `json:"cron_schedule"`
	LockTimeout       time.Duration `json:"lock_timeout"`
	MaxRetries        int           `json:"max_retries"`
	RetryDelay        time.Duration `json:"retry_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Environment       string        `json:"environment"`
	RequiredTables    []string      `json:"required_tables"`
	LockFilePath      string        `json:"lock_file_path"`
	StatusFilePath    string        `json:"status_file_path"`
	DryRun            bool          `json:"dry_run"`
}

// LockInfo represents the provisioning lock held by one instance
type LockInfo struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Environment string    `json:"environment"`
}

// WorkerStatus represents the current status of the provisioning worker
type WorkerStatus string

const (
	StatusIdle      WorkerStatus = "idle"
	StatusRunning   WorkerStatus = "running"
	StatusCompleted WorkerStatus = "completed"
	StatusFailed    WorkerStatus = "failed"
	StatusSkipped   WorkerStatus = "skipped"
)

// ExecutionResult holds the result of one provisioning run
type ExecutionResult struct {
	Success       bool                   `json:"success"`
	Status        WorkerStatus           `json:"status"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`
	Duration      time.Duration          `json:"duration"`
	TablesCreated []TableStatus          `json:"tables_created"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	RetryCount    int                    `json:"retry_count"`
	Environment   string                 `json:"environment"`
	HealthStatus  string                 `json:"health_status,omitempty"`
	NextAction    string                 `json:"next_action,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// TableStatus records one table the worker verified or created
type TableStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // EXISTS, CREATED, FAILED
	CheckedAt time.Time `json:"checked_at"`
}
