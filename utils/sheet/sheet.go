// Package sheet reads bulk import rows from spreadsheets. The first row of
// the first sheet holds the column names.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"casetrack-backend/models"

	"github.com/xuri/excelize/v2"
)

const templateSheet = "DTRs"

// TemplateHeaders are the columns of the downloadable import template.
var TemplateHeaders = []string{
	"caseId", "serialNumber", "siteCode", "siteName", "auditorium", "unitModel",
	"errorDate", "complaintDescription", "problemName", "actionTaken", "remarks",
	"priority", "caseSeverity", "callStatus", "status", "openedBy", "assignedTo",
}

var ErrNoHeader = errors.New("spreadsheet has no header row")

// ReadRows returns one ImportRow per non-empty data row. Cells are raw
// values, so date cells arrive as serial day numbers.
func ReadRows(r io.Reader) ([]models.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	result := make([]models.ImportRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := models.ImportRow{}
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			result = append(result, row)
		}
	}
	return result, nil
}

// Template builds an empty import workbook with a bold header row.
func Template() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, h := range TemplateHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(templateSheet, cell, h); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(templateSheet, cell, cell, bold); err != nil {
			return nil, err
		}
	}
	return f, nil
}
