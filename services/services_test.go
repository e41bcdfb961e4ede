package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Debugf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Info(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Infof(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Warn(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Warnf(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Error(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Errorf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Fatal(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Fatalf(format string, args ...interface{}) { m.Called(format, args) }

func newMockLogger() *MockLogger {
	l := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		l.On(method, mock.Anything).Return().Maybe()
		l.On(method+"f", mock.AnythingOfType("string"), mock.Anything).Return().Maybe()
	}
	return l
}

// testClock advances one minute per reading so successive writes get
// distinct timestamps
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) types() []notification.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	admin      = &models.Actor{UserID: "u-admin", Name: "Asha Admin", Role: models.RoleAdmin}
	manager    = &models.Actor{UserID: "u-mgr", Name: "Meera Manager", Role: models.RoleRMAManager, Designation: "RMA Manager"}
	handler    = &models.Actor{UserID: "u-handler", Name: "Hari Handler", Role: models.RoleRMAHandler}
	techHead   = &models.Actor{UserID: "u-head", Name: "Kiran Head", Role: models.RoleTechnicalHead}
	technician = &models.Actor{UserID: "u-tech", Name: "Tariq Tech", Role: models.RoleTechnician}
	otherTech  = &models.Actor{UserID: "u-tech2", Name: "Olga Other", Role: models.RoleTechnician}
	viewer     = &models.Actor{UserID: "u-view", Name: "Vik Viewer", Role: models.RoleViewer}

	warrantyFuture = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	warrantyPast   = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// fixture wires the services over an in-memory store seeded with two
// projectors: SN-100 installed at a known site, SN-200 with no site.
type fixture struct {
	ctx        context.Context
	config     *models.Config
	logger     *MockLogger
	store      *dal.MemoryStore
	repo       *repository.Repository
	notifier   *recordingNotifier
	dispatcher *notification.Dispatcher
	clock      *testClock
	ids        *IDGenerator
	dtr        *DTRService
	conversion *ConversionService
	imports    *ImportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx: context.Background(),
		config: &models.Config{
			AppEnv:                  "test",
			StoreBackend:            "memory",
			ImportMaxRows:           50,
			ImportBatchSize:         4,
			ImportTimeout:           time.Minute,
			ImportErrorCap:          10,
			ConversionRetryAttempts: 2,
			ConversionRetryDelay:    time.Millisecond,
			BulkDeleteMaxIDs:        10,
		},
		logger:   newMockLogger(),
		notifier: &recordingNotifier{},
		clock:    &testClock{t: time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)},
	}
	f.store = dal.NewMemoryStore(f.logger)
	f.repo = repository.NewRepository(f.store, nil, f.config, f.logger)
	f.dispatcher = notification.NewDispatcher(f.notifier, f.logger)

	f.ids = NewIDGenerator(f.repo.Sequence, f.repo.DTR, f.repo.RMA, f.logger)
	f.ids.now = f.clock.Now
	f.dtr = NewDTRService(f.repo.DTR, f.repo.Asset, f.ids, f.dispatcher, f.config, f.logger)
	f.dtr.now = f.clock.Now
	f.conversion = NewConversionService(f.repo.DTR, f.repo.RMA, f.repo.Asset, f.repo.Lease, f.ids, f.dispatcher, f.config, f.logger)
	f.conversion.now = f.clock.Now
	f.imports = NewImportService(f.repo.DTR, f.repo.Asset, f.ids, f.dispatcher, f.config, f.logger)
	f.imports.now = f.clock.Now

	require.NoError(t, f.store.Insert(f.ctx, models.EntitySite, &models.Site{
		ID:       "site-1",
		Name:     "PVR Phoenix",
		SiteCode: "PVR-01",
		Region:   "West",
		Auditoriums: []models.Auditorium{
			{AudiNo: "A1", Name: "Audi 1"},
			{AudiNo: "A2", Name: "Audi 2"},
		},
	}))
	require.NoError(t, f.store.Insert(f.ctx, models.EntitySite, &models.Site{
		ID:       "site-2",
		Name:     "INOX Nariman",
		SiteCode: "INX-07",
		Region:   "South",
	}))
	require.NoError(t, f.store.Insert(f.ctx, models.EntityProjector, &models.Projector{
		ID:           "proj-1",
		SerialNumber: "SN-100",
		Model:        "CP2220",
		Brand:        "Christie",
		PartNumber:   "118-100",
		SiteID:       "site-1",
		AuditoriumID: "A1",
		WarrantyEnd:  &warrantyFuture,
	}))
	require.NoError(t, f.store.Insert(f.ctx, models.EntityProjector, &models.Projector{
		ID:           "proj-2",
		SerialNumber: "SN-200",
		Model:        "NC900",
		Brand:        "NEC",
		WarrantyEnd:  &warrantyPast,
	}))
	return f
}

func (f *fixture) createDTR(t *testing.T, serial string) *models.DTR {
	t.Helper()
	dtr, err := f.dtr.CreateDTR(f.ctx, manager, &models.CreateDTRRequest{
		SerialNumber:         serial,
		ComplaintDescription: "No picture on screen",
		ProblemName:          "Lamp",
		OpenedBy:             models.OpenedBy{Name: "Site Manager", Contact: "98200 00000"},
	})
	require.NoError(t, err)
	return dtr
}

// assigned returns a case assigned to technician and in progress
func (f *fixture) assigned(t *testing.T) *models.DTR {
	t.Helper()
	dtr := f.createDTR(t, "SN-100")
	dtr, err := f.dtr.AssignTechnician(f.ctx, manager, dtr.ID, &models.AssigneeInput{UserID: technician.UserID, Name: technician.Name})
	require.NoError(t, err)
	return dtr
}

func (f *fixture) reload(t *testing.T, id string) *models.DTR {
	t.Helper()
	dtr, err := f.repo.DTR.GetDTR(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, dtr)
	return dtr
}

func (f *fixture) count(t *testing.T, entity models.EntityType) int64 {
	t.Helper()
	n, err := f.store.Count(f.ctx, entity, models.Filter{})
	require.NoError(t, err)
	return n
}
