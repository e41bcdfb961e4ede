package models

// ImportRow is one loosely-structured spreadsheet row keyed by column name.
type ImportRow map[string]interface{}

type ImportRowError struct {
	RowIndex int    `json:"rowIndex"`
	CaseID   string `json:"caseId,omitempty"`
	Message  string `json:"message"`
}

// ImportResult summarises one bulk import. Rows left unprocessed after a
// timeout are counted in Skipped.
type ImportResult struct {
	Imported  int              `json:"imported"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	TimedOut  bool             `json:"timedOut"`
	Errors    []string         `json:"errors"`
	RowErrors []ImportRowError `json:"rowErrors"`
}

type BulkImportRequest struct {
	Rows []ImportRow `json:"rows" validate:"required,min=1"`
}
