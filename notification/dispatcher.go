package notification

import (
	"context"
	"sync"
	"time"

	"casetrack-backend/utils/logger"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher runs notifiers in the background. Failures and panics are
// logged and never reach the transition that raised the event.
type Dispatcher struct {
	notifier Notifier
	logger   logger.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, log logger.Logger) *Dispatcher {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   log,
	}
}

// Dispatch returns immediately
func (d *Dispatcher) Dispatch(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorf("Notifier panicked on %s for %s: %v", event.Type, event.CaseID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, event); err != nil {
			d.logger.Errorf("Notification %s for %s failed: %v", event.Type, event.CaseID, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
