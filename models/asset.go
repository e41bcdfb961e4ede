package models

import "time"

// Projector is the equipment unit master record (read-only here).
type Projector struct {
	ID            string     `json:"id" dynamodbav:"id"`
	SerialNumber  string     `json:"serialNumber" dynamodbav:"serialNumber"`
	Model         string     `json:"model" dynamodbav:"model"`
	Brand         string     `json:"brand,omitempty" dynamodbav:"brand,omitempty"`
	PartNumber    string     `json:"partNumber,omitempty" dynamodbav:"partNumber,omitempty"`
	SiteID        string     `json:"siteId,omitempty" dynamodbav:"siteId,omitempty"`
	AuditoriumID  string     `json:"auditoriumId,omitempty" dynamodbav:"auditoriumId,omitempty"`
	WarrantyStart *time.Time `json:"warrantyStart,omitempty" dynamodbav:"warrantyStart,omitempty"`
	WarrantyEnd   *time.Time `json:"warrantyEnd,omitempty" dynamodbav:"warrantyEnd,omitempty"`
}

type Auditorium struct {
	AudiNo string `json:"audiNo" dynamodbav:"audiNo"`
	Name   string `json:"name,omitempty" dynamodbav:"name,omitempty"`
}

// Label is the display form stored on cases.
func (a *Auditorium) Label() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return a.AudiNo
}

type Site struct {
	ID          string       `json:"id" dynamodbav:"id"`
	Name        string       `json:"name" dynamodbav:"name"`
	SiteCode    string       `json:"siteCode" dynamodbav:"siteCode"`
	Region      string       `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Auditoriums []Auditorium `json:"auditoriums,omitempty" dynamodbav:"auditoriums,omitempty"`
}

// FindAuditorium looks an auditorium up by number or name.
func (s *Site) FindAuditorium(key string) *Auditorium {
	if s == nil || key == "" {
		return nil
	}
	for i := range s.Auditoriums {
		if s.Auditoriums[i].AudiNo == key || s.Auditoriums[i].Name == key {
			return &s.Auditoriums[i]
		}
	}
	return nil
}

// ResolvedUnit is what the unit/site resolver returns for a serial number.
type ResolvedUnit struct {
	Unit       *Projector  `json:"unit"`
	Site       *Site       `json:"site,omitempty"`
	Auditorium *Auditorium `json:"auditorium,omitempty"`
}

// Sentinels written when a foreign key cannot be resolved during import.
const (
	UnknownSiteName   = "Unknown Site"
	UnknownSiteCode   = "UNKNOWN"
	UnknownRegion     = "Unknown"
	UnknownUnitModel  = "Unknown Model"
	UnknownAuditorium = "Unknown"
)
