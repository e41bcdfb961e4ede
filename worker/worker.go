package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron"
)

const runTimeout = 15 * time.Minute

// ErrAlreadyRunning is returned when a run is requested while one is active
var ErrAlreadyRunning = errors.New("provisioning is already running")

// Worker provisions case store tables on a cron schedule
type Worker struct {
	config      *models.WorkerConfig
	logger      logger.Logger
	cronJob     *cron.Cron
	lock        *LockManager
	status      *StatusManager
	provisioner *Provisioner
	ownerID     string
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.Mutex
	running     bool
}

func NewWorker(cfg *models.Config, store TableStore, log logger.Logger) (*Worker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}

	workerConfig := &models.WorkerConfig{
		CronSchedule:      cfg.ProvisionSchedule,
		LockTimeout:       30 * time.Minute,
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Environment:       cfg.AppEnv,
		RequiredTables:    cfg.Tables,
		LockFilePath:      fmt.Sprintf("%s/casetrack-provision-%s.lock", os.TempDir(), cfg.AppEnv),
		StatusFilePath:    fmt.Sprintf("%s/casetrack-status-%s.json", os.TempDir(), cfg.AppEnv),
		DryRun:            os.Getenv("PROVISION_DRY_RUN") == "true",
	}
	if workerConfig.CronSchedule == "" {
		workerConfig.CronSchedule = getCronScheduleForEnvironment(cfg.AppEnv)
	}
	return newWorker(workerConfig, store, log, fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8]))
}

func newWorker(workerConfig *models.WorkerConfig, store TableStore, log logger.Logger, ownerID string) (*Worker, error) {
	if err := validateWorkerConfig(workerConfig); err != nil {
		return nil, fmt.Errorf("invalid worker configuration: %w", err)
	}
	entities, err := entitiesFor(workerConfig.RequiredTables)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		config:      workerConfig,
		logger:      log,
		cronJob:     cron.New(),
		lock:        NewLockManager(workerConfig.LockFilePath, workerConfig.LockTimeout, workerConfig.Environment),
		status:      NewStatusManager(workerConfig.StatusFilePath),
		provisioner: NewProvisioner(store, entities, workerConfig.DryRun, log),
		ownerID:     ownerID,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start schedules provisioning and triggers a first run in the background
func (w *Worker) Start() error {
	w.logger.Infof("Starting provisioning worker %s with schedule: %s", w.ownerID, w.config.CronSchedule)

	if err := w.cronJob.AddFunc(w.config.CronSchedule, w.runScheduled); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	w.cronJob.Start()

	go w.runScheduled()
	return nil
}

// Stop stops the schedule and cancels an in-flight run
func (w *Worker) Stop() {
	w.logger.Info("Stopping provisioning worker")
	w.cronJob.Stop()
	w.cancel()
}

func (w *Worker) runScheduled() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("Provisioning run panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(w.ctx, runTimeout)
	defer cancel()

	// every run re-verifies, so tables dropped out of band come back
	if _, err := w.RunNow(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) && !errors.Is(err, ErrLockHeld) {
		w.logger.Errorf("Scheduled provisioning failed: %v", err)
	}
}

// RunNow provisions immediately, retrying with exponential backoff
func (w *Worker) RunNow(ctx context.Context) (*models.ExecutionResult, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.lock.CleanupExpiredLocks(); err != nil {
		w.logger.Warnf("Failed to clean up expired lock: %v", err)
	}
	lockInfo, err := w.lock.AcquireLock(w.ownerID)
	if err != nil {
		w.logger.Infof("Skipping provisioning run: %v", err)
		return nil, err
	}
	defer func() {
		if err := w.lock.ReleaseLock(lockInfo); err != nil {
			w.logger.Warnf("Failed to release provisioning lock: %v", err)
		}
	}()

	result := &models.ExecutionResult{
		Status:        models.StatusRunning,
		StartTime:     time.Now(),
		Environment:   w.config.Environment,
		TablesCreated: []models.TableStatus{},
		Metadata: map[string]interface{}{
			"owner":   w.ownerID,
			"lock_id": lockInfo.ID,
			"dry_run": w.config.DryRun,
		},
	}
	w.saveStatus(result)

	var runErr error
attempts:
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(w.config.RetryDelay, w.config.BackoffMultiplier, attempt)
			w.logger.Infof("Retrying provisioning in %v (attempt %d/%d)", delay, attempt+1, w.config.MaxRetries+1)
			result.RetryCount = attempt
			w.saveStatus(result)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				runErr = ctx.Err()
				break attempts
			}
		}

		if runErr = w.provisioner.Execute(ctx, result); runErr == nil {
			break
		}
	}

	now := time.Now()
	result.EndTime = &now
	result.Duration = now.Sub(result.StartTime)
	if runErr != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = runErr.Error()
	} else {
		result.Status = models.StatusCompleted
		result.Success = true
	}
	w.saveStatus(result)

	w.logger.Infof("Provisioning finished: status=%s tables=%d retries=%d duration=%v",
		result.Status, len(result.TablesCreated), result.RetryCount, result.Duration)
	return result, runErr
}

// GetStatus returns the last persisted provisioning result
func (w *Worker) GetStatus() (*models.ExecutionResult, error) {
	return w.status.LoadStatus()
}

func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) saveStatus(result *models.ExecutionResult) {
	if err := w.status.SaveStatus(result); err != nil {
		w.logger.Warnf("Failed to save provisioning status: %v", err)
	}
}

func backoff(base time.Duration, multiplier float64, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(multiplier, float64(attempt-1)))
}

// entitiesFor maps configured table names onto entities; empty means all
func entitiesFor(tables []string) ([]models.EntityType, error) {
	if len(tables) == 0 {
		return models.AllEntities, nil
	}
	known := make(map[models.EntityType]bool, len(models.AllEntities))
	for _, e := range models.AllEntities {
		known[e] = true
	}

	entities := make([]models.EntityType, 0, len(tables))
	for _, t := range tables {
		entity := models.EntityType(t)
		if !known[entity] {
			return nil, fmt.Errorf("unknown table %q", t)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// validateWorkerConfig validates the worker configuration
func validateWorkerConfig(config *models.WorkerConfig) error {
	if config == nil {
		return fmt.Errorf("worker config cannot be nil")
	}
	if config.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if config.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if config.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if config.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff multiplier must be at least 1.0")
	}
	if config.LockFilePath == "" {
		return fmt.Errorf("lock file path is required")
	}
	if config.StatusFilePath == "" {
		return fmt.Errorf("status file path is required")
	}

	cronParser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := cronParser.Parse(config.CronSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", config.CronSchedule, err)
	}
	return nil
}

// getCronScheduleForEnvironment returns environment-specific cron schedules
func getCronScheduleForEnvironment(env string) string {
	switch env {
	case "development":
		return "0 */5 * * * *"
	case "production":
		return "0 0 * * * *"
	default:
		return "0 */15 * * * *"
	}
}
