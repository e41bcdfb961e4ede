package models

import (
	"strings"
	"time"
)

// DTRStatus is the lifecycle state of a defect report
type DTRStatus string

const (
	DTRStatusOpen            DTRStatus = "Open"
	DTRStatusInProgress      DTRStatus = "In Progress"
	DTRStatusReadyForRMA     DTRStatus = "Ready-for-RMA"
	DTRStatusClosed          DTRStatus = "Closed"
	DTRStatusShiftedToRMA    DTRStatus = "Shifted-to-RMA"
	DTRStatusUnableToResolve DTRStatus = "Unable-to-Resolve"
)

// IsTerminal reports whether no further workflow transitions are accepted.
func (s DTRStatus) IsTerminal() bool {
	switch s {
	case DTRStatusClosed, DTRStatusShiftedToRMA, DTRStatusUnableToResolve:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

type Severity string

const (
	SeverityInformation Severity = "Information"
	SeverityMinor       Severity = "Minor"
	SeverityMajor       Severity = "Major"
	SeverityCritical    Severity = "Critical"
)

// Known call status tags. The field itself is open-ended.
const (
	CallStatusOpen            = "Open"
	CallStatusClosed          = "Closed"
	CallStatusObservation     = "Observation"
	CallStatusWaitingCustomer = "Waiting_Cust_Responses"
)

const ClosedReasonShiftedToRMA = "Shifted to RMA"

// Workflow history action tags
const (
	HistoryActionCreated       = "created"
	HistoryActionAssigned      = "assigned"
	HistoryActionTroubleshoot  = "troubleshooting_added"
	HistoryActionEscalated     = "escalated"
	HistoryActionTechHead      = "escalated_to_technical_head"
	HistoryActionFinalized     = "finalized"
	HistoryActionStatusChanged = "status_changed"
	HistoryActionFilesUploaded = "files_uploaded"
	HistoryActionConverted     = "converted_to_rma"
)

// OpenedBy is the reporting actor, captured at creation and never changed.
type OpenedBy struct {
	Name        string `json:"name" dynamodbav:"name" validate:"required"`
	Designation string `json:"designation,omitempty" dynamodbav:"designation,omitempty"`
	Contact     string `json:"contact,omitempty" dynamodbav:"contact,omitempty"`
	UserID      string `json:"userId,omitempty" dynamodbav:"userId,omitempty"`
}

type ClosedBy struct {
	Name        string     `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Designation string     `json:"designation,omitempty" dynamodbav:"designation,omitempty"`
	Contact     string     `json:"contact,omitempty" dynamodbav:"contact,omitempty"`
	ClosedDate  *time.Time `json:"closedDate,omitempty" dynamodbav:"closedDate,omitempty"`
	UserID      string     `json:"userId,omitempty" dynamodbav:"userId,omitempty"`
}

type TroubleshootingStep struct {
	Step        int          `json:"step" dynamodbav:"step"`
	Description string       `json:"description" dynamodbav:"description"`
	Outcome     string       `json:"outcome,omitempty" dynamodbav:"outcome,omitempty"`
	PerformedBy string       `json:"performedBy" dynamodbav:"performedBy"`
	PerformedAt time.Time    `json:"performedAt" dynamodbav:"performedAt"`
	Attachments []Attachment `json:"attachments,omitempty" dynamodbav:"attachments,omitempty"`
}

type HistoryActor struct {
	Name   string `json:"name" dynamodbav:"name"`
	Role   Role   `json:"role" dynamodbav:"role"`
	UserID string `json:"userId,omitempty" dynamodbav:"userId,omitempty"`
}

// WorkflowEntry is one append-only audit record
type WorkflowEntry struct {
	Action        string       `json:"action" dynamodbav:"action"`
	PerformedBy   HistoryActor `json:"performedBy" dynamodbav:"performedBy"`
	Timestamp     time.Time    `json:"timestamp" dynamodbav:"timestamp"`
	Details       string       `json:"details,omitempty" dynamodbav:"details,omitempty"`
	PreviousValue string       `json:"previousValue,omitempty" dynamodbav:"previousValue,omitempty"`
	NewValue      string       `json:"newValue,omitempty" dynamodbav:"newValue,omitempty"`
}

type ConversionToRMA struct {
	CanConvert         bool       `json:"canConvert" dynamodbav:"canConvert"`
	ConversionReason   string     `json:"conversionReason,omitempty" dynamodbav:"conversionReason,omitempty"`
	ConvertedBy        string     `json:"convertedBy,omitempty" dynamodbav:"convertedBy,omitempty"`
	ConvertedDate      *time.Time `json:"convertedDate,omitempty" dynamodbav:"convertedDate,omitempty"`
	RMAManagerAssigned string     `json:"rmaManagerAssigned,omitempty" dynamodbav:"rmaManagerAssigned,omitempty"`
}

// Attachment is the metadata of a file kept by the upload collaborator.
type Attachment struct {
	Filename     string    `json:"filename" dynamodbav:"filename" validate:"required"`
	OriginalName string    `json:"originalName,omitempty" dynamodbav:"originalName,omitempty"`
	MimeType     string    `json:"mimeType,omitempty" dynamodbav:"mimeType,omitempty"`
	Size         int64     `json:"size,omitempty" dynamodbav:"size,omitempty"`
	URL          string    `json:"url,omitempty" dynamodbav:"url,omitempty"`
	UploadedBy   string    `json:"uploadedBy,omitempty" dynamodbav:"uploadedBy,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt" dynamodbav:"uploadedAt"`
}

// DTR is a field-reported defect case. Site and unit fields are a snapshot
// taken at creation time and are not refreshed from master data afterwards.
type DTR struct {
	ID                   string                `json:"id" dynamodbav:"id"`
	CaseID               string                `json:"caseId" dynamodbav:"caseId" validate:"required"`
	SerialNumber         string                `json:"serialNumber" dynamodbav:"serialNumber" validate:"required"`
	SiteName             string                `json:"siteName" dynamodbav:"siteName"`
	SiteCode             string                `json:"siteCode" dynamodbav:"siteCode"`
	Region               string                `json:"region" dynamodbav:"region"`
	UnitModel            string                `json:"unitModel" dynamodbav:"unitModel"`
	Auditorium           string                `json:"auditorium" dynamodbav:"auditorium"`
	ErrorDate            FlexTime              `json:"errorDate" dynamodbav:"errorDate"`
	ComplaintDescription string                `json:"complaintDescription" dynamodbav:"complaintDescription" validate:"required"`
	ProblemName          string                `json:"problemName,omitempty" dynamodbav:"problemName,omitempty"`
	ActionTaken          string                `json:"actionTaken,omitempty" dynamodbav:"actionTaken,omitempty"`
	Remarks              string                `json:"remarks,omitempty" dynamodbav:"remarks,omitempty"`
	ClosedRemarks        string                `json:"closedRemarks,omitempty" dynamodbav:"closedRemarks,omitempty"`
	ClosedReason         string                `json:"closedReason,omitempty" dynamodbav:"closedReason,omitempty"`
	Priority             Priority              `json:"priority" dynamodbav:"priority" validate:"required,oneof=Low Medium High Critical"`
	CaseSeverity         Severity              `json:"caseSeverity" dynamodbav:"caseSeverity" validate:"required,oneof=Information Minor Major Critical"`
	CallStatus           string                `json:"callStatus" dynamodbav:"callStatus" validate:"required,oneof=Open Closed Observation Waiting_Cust_Responses"`
	Status               DTRStatus             `json:"status" dynamodbav:"status" validate:"required"`
	OpenedBy             OpenedBy              `json:"openedBy" dynamodbav:"openedBy"`
	AssignedTo           *Assignee             `json:"assignedTo,omitempty" dynamodbav:"assignedTo,omitempty"`
	ClosedBy             *ClosedBy             `json:"closedBy,omitempty" dynamodbav:"closedBy,omitempty"`
	TroubleshootingSteps []TroubleshootingStep `json:"troubleshootingSteps" dynamodbav:"troubleshootingSteps"`
	WorkflowHistory      []WorkflowEntry       `json:"workflowHistory" dynamodbav:"workflowHistory"`
	ConversionToRMA      ConversionToRMA       `json:"conversionToRMA" dynamodbav:"conversionToRMA"`
	RMACaseNumber        string                `json:"rmaCaseNumber,omitempty" dynamodbav:"rmaCaseNumber,omitempty"`
	Attachments          []Attachment          `json:"attachments" dynamodbav:"attachments"`
	CreatedAt            time.Time             `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt" dynamodbav:"updatedAt"`
}

// AppendHistory adds one audit entry performed by actor.
func (d *DTR) AppendHistory(actor *Actor, action, details, previous, next string, at time.Time) {
	d.WorkflowHistory = append(d.WorkflowHistory, WorkflowEntry{
		Action: action,
		PerformedBy: HistoryActor{
			Name:   actor.DisplayName(),
			Role:   actor.Role,
			UserID: actor.UserID,
		},
		Timestamp:     at,
		Details:       details,
		PreviousValue: previous,
		NewValue:      next,
	})
}

// CreateDTRRequest is the payload of createDtr.
type CreateDTRRequest struct {
	CaseID               string         `json:"caseId,omitempty"`
	SerialNumber         string         `json:"serialNumber" validate:"required"`
	ErrorDate            string         `json:"errorDate,omitempty"`
	ComplaintDescription string         `json:"complaintDescription" validate:"required,max=5000"`
	ProblemName          string         `json:"problemName,omitempty" validate:"omitempty,max=500"`
	ActionTaken          string         `json:"actionTaken,omitempty" validate:"omitempty,max=5000"`
	Remarks              string         `json:"remarks,omitempty" validate:"omitempty,max=5000"`
	Priority             Priority       `json:"priority,omitempty" validate:"omitempty,oneof=Low Medium High Critical"`
	CaseSeverity         Severity       `json:"caseSeverity,omitempty" validate:"omitempty,oneof=Information Minor Major Critical"`
	CallStatus           string         `json:"callStatus,omitempty" validate:"omitempty,oneof=Open Closed Observation Waiting_Cust_Responses"`
	OpenedBy             OpenedBy       `json:"openedBy" validate:"required"`
	AssignedTo           *AssigneeInput `json:"assignedTo,omitempty"`
	Attachments          []Attachment   `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// UpdateDTRRequest is the generic patch. Nil fields are left untouched.
type UpdateDTRRequest struct {
	ComplaintDescription *string    `json:"complaintDescription,omitempty" validate:"omitempty,max=5000"`
	ProblemName          *string    `json:"problemName,omitempty" validate:"omitempty,max=500"`
	ActionTaken          *string    `json:"actionTaken,omitempty" validate:"omitempty,max=5000"`
	Remarks              *string    `json:"remarks,omitempty" validate:"omitempty,max=5000"`
	ClosedRemarks        *string    `json:"closedRemarks,omitempty" validate:"omitempty,max=5000"`
	ClosedReason         *string    `json:"closedReason,omitempty" validate:"omitempty,max=500"`
	Priority             *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=Low Medium High Critical"`
	CaseSeverity         *Severity  `json:"caseSeverity,omitempty" validate:"omitempty,oneof=Information Minor Major Critical"`
	CallStatus           *string    `json:"callStatus,omitempty" validate:"omitempty,oneof=Open Closed Observation Waiting_Cust_Responses"`
	Status               *DTRStatus `json:"status,omitempty"`
	ErrorDate            *string    `json:"errorDate,omitempty"`
	ClosedBy             *ClosedBy  `json:"closedBy,omitempty"`
}

type TroubleshootingStepRequest struct {
	Description string       `json:"description" validate:"required,max=5000"`
	Outcome     string       `json:"outcome,omitempty" validate:"omitempty,max=5000"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// AssignRequest carries a technician or technical head in either accepted
// assignee form.
type AssignRequest struct {
	Assignee AssigneeInput `json:"assignee"`
}

type MarkForConversionRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type ConvertToRMARequest struct {
	Assignment *AssigneeInput `json:"assignment,omitempty"`
	Reason     string         `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

// FinalizeRequest carries the technical head's resolution and the
// rma_handler the case is handed to.
type FinalizeRequest struct {
	Resolution string        `json:"resolution" validate:"required,max=5000"`
	Remarks    string        `json:"remarks,omitempty" validate:"omitempty,max=5000"`
	Handoff    AssigneeInput `json:"handoff"`
}

type UploadFilesRequest struct {
	Files []Attachment `json:"files" validate:"required,min=1,max=20,dive"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type BulkDeleteResult struct {
	DeletedCount   int64 `json:"deletedCount"`
	RequestedCount int   `json:"requestedCount"`
}

// DTRFilter narrows list queries. Empty fields are ignored.
type DTRFilter struct {
	Status       DTRStatus `json:"status,omitempty"`
	SerialNumber string    `json:"serialNumber,omitempty"`
	SiteCode     string    `json:"siteCode,omitempty"`
	AssignedTo   string    `json:"assignedTo,omitempty"`
	Priority     Priority  `json:"priority,omitempty"`
	Page         int       `json:"page,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

type DTRList struct {
	Items []*DTR `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// NormalizeClosedReason folds caller spellings of the RMA shift reason onto
// the canonical value.
func NormalizeClosedReason(reason string) string {
	folded := strings.ToLower(strings.ReplaceAll(reason, "-", " "))
	folded = strings.Join(strings.Fields(folded), " ")
	if folded == "shifted to rma" {
		return ClosedReasonShiftedToRMA
	}
	return reason
}
