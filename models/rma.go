package models

import "time"

type RMAPriority string

const (
	RMAPriorityLow    RMAPriority = "Low"
	RMAPriorityMedium RMAPriority = "Medium"
	RMAPriorityHigh   RMAPriority = "High"
)

const (
	RMAStatusUnderReview = "Under Review"

	WarrantyIn      = "In Warranty"
	WarrantyOut     = "Out of Warranty"
	WarrantyUnknown = "Unknown"
)

// OriginatedFromDTR links an RMA back to the defect report it came from.
type OriginatedFromDTR struct {
	DTRID            string    `json:"dtrId" dynamodbav:"dtrId"`
	DTRCaseID        string    `json:"dtrCaseId" dynamodbav:"dtrCaseId"`
	ConversionDate   time.Time `json:"conversionDate" dynamodbav:"conversionDate"`
	ConversionReason string    `json:"conversionReason,omitempty" dynamodbav:"conversionReason,omitempty"`
	Technician       string    `json:"technician,omitempty" dynamodbav:"technician,omitempty"`
}

// RMA is created by the conversion engine. Its own lifecycle lives
// elsewhere; only creation-time fields are modelled here.
type RMA struct {
	ID                string            `json:"id" dynamodbav:"id"`
	RMANumber         string            `json:"rmaNumber" dynamodbav:"rmaNumber"`
	CallLogNumber     string            `json:"callLogNumber" dynamodbav:"callLogNumber"`
	Status            string            `json:"status" dynamodbav:"status"`
	Priority          RMAPriority       `json:"priority" dynamodbav:"priority"`
	SerialNumber      string            `json:"serialNumber" dynamodbav:"serialNumber"`
	ProductName       string            `json:"productName" dynamodbav:"productName"`
	ProductPartNumber string            `json:"productPartNumber,omitempty" dynamodbav:"productPartNumber,omitempty"`
	Brand             string            `json:"brand,omitempty" dynamodbav:"brand,omitempty"`
	SiteName          string            `json:"siteName" dynamodbav:"siteName"`
	SiteCode          string            `json:"siteCode,omitempty" dynamodbav:"siteCode,omitempty"`
	Region            string            `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Auditorium        string            `json:"auditorium,omitempty" dynamodbav:"auditorium,omitempty"`
	DefectDescription string            `json:"defectDescription" dynamodbav:"defectDescription"`
	Symptoms          string            `json:"symptoms,omitempty" dynamodbav:"symptoms,omitempty"`
	Notes             string            `json:"notes" dynamodbav:"notes"`
	WarrantyStatus    string            `json:"warrantyStatus" dynamodbav:"warrantyStatus"`
	AssignedTo        *Assignee         `json:"assignedTo,omitempty" dynamodbav:"assignedTo,omitempty"`
	OriginatedFromDTR OriginatedFromDTR `json:"originatedFromDTR" dynamodbav:"originatedFromDTR"`
	CreatedBy         string            `json:"createdBy" dynamodbav:"createdBy"`
	CreatedAt         time.Time         `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" dynamodbav:"updatedAt"`
}

// ConversionResult is returned by ConvertToRMA.
type ConversionResult struct {
	DTR *DTR `json:"dtr"`
	RMA *RMA `json:"rma"`
}
