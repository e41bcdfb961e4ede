package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"gopkg.in/gomail.v2"
)

// EventType names the transition a notification reports
type EventType string

const (
	EventCreated             EventType = "dtr.created"
	EventAssigned            EventType = "dtr.assigned"
	EventMarkedForConversion EventType = "dtr.marked_for_conversion"
	EventConverted           EventType = "dtr.converted_to_rma"
	EventEscalated           EventType = "dtr.escalated_to_technical_head"
	EventFinalized           EventType = "dtr.finalized"
	EventStatusChanged       EventType = "dtr.status_changed"
	EventImported            EventType = "dtr.bulk_imported"
)

// Event is the payload handed to notifiers
type Event struct {
	Type      EventType
	CaseID    string
	Actor     *models.Actor
	Details   string
	DTR       *models.DTR
	RMA       *models.RMA
	Timestamp time.Time
}

// Notifier delivers case events to people outside the engine
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event Event) error { return nil }

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails each event to the configured recipients over SMTP
type EmailNotifier struct {
	dialer     sender
	from       string
	recipients []string
	logger     logger.Logger
}

func NewEmailNotifier(cfg *models.Config, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		dialer:     gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:       cfg.SMTPFrom,
		recipients: cfg.NotifyRecipients,
		logger:     log,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	if len(n.recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.recipients...)
	m.SetHeader("Subject", Subject(event))
	m.SetBody("text/plain", Body(event))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %s notification for %s: %w", event.Type, event.CaseID, err)
	}
	n.logger.Infof("Notification %s sent for %s", event.Type, event.CaseID)
	return nil
}

func Subject(event Event) string {
	return fmt.Sprintf("[%s] %s", event.CaseID, strings.ReplaceAll(strings.TrimPrefix(string(event.Type), "dtr."), "_", " "))
}

func Body(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", event.CaseID)
	fmt.Fprintf(&b, "Event: %s\n", event.Type)
	if event.Actor != nil {
		fmt.Fprintf(&b, "By: %s (%s)\n", event.Actor.DisplayName(), event.Actor.Role)
	}
	if !event.Timestamp.IsZero() {
		fmt.Fprintf(&b, "At: %s\n", event.Timestamp.UTC().Format(time.RFC1123))
	}
	if event.DTR != nil {
		fmt.Fprintf(&b, "Status: %s\n", event.DTR.Status)
		fmt.Fprintf(&b, "Site: %s\n", event.DTR.SiteName)
		fmt.Fprintf(&b, "Serial: %s\n", event.DTR.SerialNumber)
		if event.DTR.AssignedTo != nil {
			fmt.Fprintf(&b, "Assigned to: %s\n", event.DTR.AssignedTo)
		}
	}
	if event.RMA != nil {
		fmt.Fprintf(&b, "RMA: %s\n", event.RMA.RMANumber)
	}
	if event.Details != "" {
		fmt.Fprintf(&b, "\n%s\n", event.Details)
	}
	return b.String()
}
