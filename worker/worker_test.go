package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"casetrack-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// MockLogger is a mock implementation of logger.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Info(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Warn(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Error(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Fatal(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Debugf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Infof(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Warnf(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Errorf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Fatalf(format string, args ...interface{}) { m.Called(format, args) }

func newMockLogger() *MockLogger {
	l := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn", "Error", "Fatal"} {
		l.On(method, mock.Anything).Return().Maybe()
	}
	for _, method := range []string{"Debugf", "Infof", "Warnf", "Errorf", "Fatalf"} {
		l.On(method, mock.Anything, mock.Anything).Return().Maybe()
	}
	return l
}

// fakeTableStore keeps table state in memory. Created tables become active
// on the next describe.
type fakeTableStore struct {
	mu        sync.Mutex
	tables    map[string]types.TableStatus
	createErr error
	created   []string
}

func newFakeTableStore(existing ...string) *fakeTableStore {
	f := &fakeTableStore{tables: map[string]types.TableStatus{}}
	for _, name := range existing {
		f.tables[name] = types.TableStatusActive
	}
	return f
}

func (f *fakeTableStore) TableName(entity models.EntityType) string {
	return "test_" + string(entity)
}

func (f *fakeTableStore) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	name := aws.ToString(input.TableName)
	f.tables[name] = types.TableStatusCreating
	f.created = append(f.created, name)
	return nil
}

func (f *fakeTableStore) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.tables[tableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	if status == types.TableStatusCreating {
		f.tables[tableName] = types.TableStatusActive
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableName: aws.String(tableName), TableStatus: status},
	}, nil
}

type WorkerTestSuite struct {
	suite.Suite
	dir          string
	store        *fakeTableStore
	logger       *MockLogger
	workerConfig *models.WorkerConfig
}

func (suite *WorkerTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.store = newFakeTableStore("test_dtrs")
	suite.logger = newMockLogger()
	suite.workerConfig = &models.WorkerConfig{
		CronSchedule:      "0 */15 * * * *",
		LockTimeout:       time.Minute,
		MaxRetries:        1,
		RetryDelay:        time.Millisecond,
		BackoffMultiplier: 2.0,
		Environment:       "test",
		LockFilePath:      filepath.Join(suite.dir, "provision.lock"),
		StatusFilePath:    filepath.Join(suite.dir, "status.json"),
	}
}

func TestWorkerTestSuite(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}

func (suite *WorkerTestSuite) newWorker() *Worker {
	w, err := newWorker(suite.workerConfig, suite.store, suite.logger, "worker-test")
	suite.Require().NoError(err)
	w.provisioner.pollInterval = time.Millisecond
	return w
}

func (suite *WorkerTestSuite) TestRunNowCreatesMissingTables() {
	w := suite.newWorker()

	result, err := w.RunNow(context.Background())

	suite.Require().NoError(err)
	suite.True(result.Success)
	suite.Equal(models.StatusCompleted, result.Status)
	suite.Len(result.TablesCreated, len(models.AllEntities))
	suite.ElementsMatch([]string{"test_rmas", "test_projectors", "test_sites", "test_counters"}, suite.store.created)

	statuses := map[string]string{}
	for _, table := range result.TablesCreated {
		statuses[table.Name] = table.Status
	}
	suite.Equal(TableExists, statuses["test_dtrs"])
	suite.Equal(TableCreated, statuses["test_rmas"])

	saved, err := w.GetStatus()
	suite.Require().NoError(err)
	suite.Equal(models.StatusCompleted, saved.Status)
	suite.False(w.IsRunning())
}

func (suite *WorkerTestSuite) TestRunNowFailsAfterRetries() {
	suite.store.createErr = errors.New("throttled")
	w := suite.newWorker()

	result, err := w.RunNow(context.Background())

	suite.Error(err)
	suite.Equal(models.StatusFailed, result.Status)
	suite.Equal(1, result.RetryCount)
	suite.Contains(result.ErrorMessage, "throttled")

	for _, table := range result.TablesCreated {
		if table.Name == "test_dtrs" {
			suite.Equal(TableExists, table.Status)
		} else {
			suite.Equal(TableFailed, table.Status)
		}
	}
}

func (suite *WorkerTestSuite) TestDryRunCreatesNothing() {
	suite.workerConfig.DryRun = true
	w := suite.newWorker()

	result, err := w.RunNow(context.Background())

	suite.Require().NoError(err)
	suite.Empty(suite.store.created)
	for _, table := range result.TablesCreated {
		if table.Name != "test_dtrs" {
			suite.Equal(TableDryRun, table.Status)
		}
	}
}

func (suite *WorkerTestSuite) TestRunNowSkipsWhenLockHeld() {
	other := NewLockManager(suite.workerConfig.LockFilePath, time.Minute, "test")
	_, err := other.AcquireLock("someone-else")
	suite.Require().NoError(err)

	w := suite.newWorker()
	result, err := w.RunNow(context.Background())

	suite.Nil(result)
	suite.ErrorIs(err, ErrLockHeld)
	suite.Empty(suite.store.created)
}

func (suite *WorkerTestSuite) TestGetStatusBeforeFirstRun() {
	w := suite.newWorker()

	status, err := w.GetStatus()

	suite.Require().NoError(err)
	suite.Equal(models.StatusIdle, status.Status)
}

func TestLockManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.json")

	t.Run("same owner extends", func(t *testing.T) {
		lm := NewLockManager(path, time.Minute, "test")
		first, err := lm.AcquireLock("a")
		require.NoError(t, err)
		second, err := lm.AcquireLock("a")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.NoError(t, lm.ReleaseLock(second))
	})

	t.Run("expired lock is taken over", func(t *testing.T) {
		expired := NewLockManager(path, -time.Minute, "test")
		_, err := expired.AcquireLock("a")
		require.NoError(t, err)

		lm := NewLockManager(path, time.Minute, "test")
		require.NoError(t, lm.CleanupExpiredLocks())
		lock, err := lm.AcquireLock("b")
		require.NoError(t, err)
		assert.Equal(t, "b", lock.Owner)
	})

	t.Run("foreign release rejected", func(t *testing.T) {
		lm := NewLockManager(path, time.Minute, "test")
		assert.Error(t, lm.ReleaseLock(&models.LockInfo{Owner: "c"}))
	})
}

func TestEntitiesFor(t *testing.T) {
	all, err := entitiesFor(nil)
	require.NoError(t, err)
	assert.Equal(t, models.AllEntities, all)

	some, err := entitiesFor([]string{"dtrs", "rmas"})
	require.NoError(t, err)
	assert.Equal(t, []models.EntityType{models.EntityDTR, models.EntityRMA}, some)

	_, err = entitiesFor([]string{"users"})
	assert.Error(t, err)
}

func TestValidateWorkerConfig(t *testing.T) {
	valid := func() *models.WorkerConfig {
		return &models.WorkerConfig{
			CronSchedule:      "0 */15 * * * *",
			LockTimeout:       time.Minute,
			RetryDelay:        time.Second,
			BackoffMultiplier: 2,
			Environment:       "test",
			LockFilePath:      "/tmp/x.lock",
			StatusFilePath:    "/tmp/x.json",
		}
	}

	assert.NoError(t, validateWorkerConfig(valid()))
	assert.Error(t, validateWorkerConfig(nil))

	badCron := valid()
	badCron.CronSchedule = "every tuesday"
	assert.Error(t, validateWorkerConfig(badCron))

	noEnv := valid()
	noEnv.Environment = ""
	assert.Error(t, validateWorkerConfig(noEnv))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 2, 1))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 2, 3))
}
