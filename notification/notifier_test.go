package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casetrack-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
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
	l.On("Infof", mock.Anything, mock.Anything).Maybe()
	l.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return l
}

type fakeDialer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

type funcNotifier func(ctx context.Context, event Event) error

func (f funcNotifier) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

func sampleEvent() Event {
	return Event{
		Type:      EventConverted,
		CaseID:    "DTR-000042",
		Actor:     &models.Actor{UserID: "u-mgr", Name: "Meera Manager", Role: models.RoleRMAManager},
		Details:   "Ballast failure",
		DTR:       &models.DTR{CaseID: "DTR-000042", Status: models.DTRStatusShiftedToRMA, SiteName: "PVR Phoenix", SerialNumber: "SN-100"},
		RMA:       &models.RMA{RMANumber: "RMA-2024-000001"},
		Timestamp: time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestSubjectAndBody(t *testing.T) {
	event := sampleEvent()

	assert.Equal(t, "[DTR-000042] converted to rma", Subject(event))

	body := Body(event)
	assert.Contains(t, body, "Case: DTR-000042")
	assert.Contains(t, body, "By: Meera Manager (rma_manager)")
	assert.Contains(t, body, "Site: PVR Phoenix")
	assert.Contains(t, body, "RMA: RMA-2024-000001")
	assert.Contains(t, body, "Ballast failure")
}

func TestEmailNotifierSends(t *testing.T) {
	dialer := &fakeDialer{}
	n := &EmailNotifier{dialer: dialer, from: "casetrack@example.com", recipients: []string{"ops@example.com"}, logger: newMockLogger()}

	require.NoError(t, n.Notify(context.Background(), sampleEvent()))
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, dialer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"[DTR-000042] converted to rma"}, dialer.sent[0].GetHeader("Subject"))
}

func TestEmailNotifierWithoutRecipients(t *testing.T) {
	dialer := &fakeDialer{}
	n := &EmailNotifier{dialer: dialer, logger: newMockLogger()}

	assert.NoError(t, n.Notify(context.Background(), sampleEvent()))
	assert.Empty(t, dialer.sent)
}

func TestEmailNotifierSMTPFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	n := &EmailNotifier{dialer: dialer, recipients: []string{"ops@example.com"}, logger: newMockLogger()}

	err := n.Notify(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "DTR-000042")
}

func TestDispatcherDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []EventType
	d := NewDispatcher(funcNotifier(func(ctx context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Type)
		assert.False(t, event.Timestamp.IsZero())
		return nil
	}), newMockLogger())

	d.Dispatch(Event{Type: EventCreated, CaseID: "DTR-000001"})
	d.Dispatch(Event{Type: EventAssigned, CaseID: "DTR-000001"})
	d.Wait()

	assert.ElementsMatch(t, []EventType{EventCreated, EventAssigned}, got)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	log := &MockLogger{}
	log.On("Errorf", "Notification %s for %s failed: %v", mock.Anything).Once()
	log.On("Errorf", "Notifier panicked on %s for %s: %v", mock.Anything).Once()

	d := NewDispatcher(funcNotifier(func(ctx context.Context, event Event) error {
		if event.Type == EventFinalized {
			panic("template missing")
		}
		return errors.New("smtp down")
	}), log)

	d.Dispatch(Event{Type: EventCreated, CaseID: "DTR-000001"})
	d.Dispatch(Event{Type: EventFinalized, CaseID: "DTR-000001"})
	d.Wait()

	log.AssertExpectations(t)
}

func TestNilNotifierDefaultsToNop(t *testing.T) {
	d := NewDispatcher(nil, newMockLogger())
	d.Dispatch(Event{Type: EventCreated, CaseID: "DTR-000001"})
	d.Wait()
}
