package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// ReadFundReport parses a filled-in fund template in CSV or XLSX form.
func ReadFundReport(r io.Reader, format models.Format) (models.FundReport, error) {
	var sheets []models.Sheet
	var err error
	switch format {
	case models.FormatCSV:
		sheets, err = ParseFundCSV(r)
	case models.FormatXLSX:
		sheets, err = ParseWorkbook(r)
	default:
		return models.FundReport{}, fmt.Errorf("fund reports are read from csv or xlsx, not %s", format)
	}
	if err != nil {
		return models.FundReport{}, err
	}
	return models.FundReportFromSheets(sheets)
}

// LoadFundReport reads a fund template file, picking the parser from its
// extension.
func LoadFundReport(path string) (models.FundReport, error) {
	format, err := models.ParseFormat(filepath.Ext(path))
	if err != nil {
		return models.FundReport{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return models.FundReport{}, fmt.Errorf("failed to open fund report: %w", err)
	}
	defer f.Close()

	return ReadFundReport(f, format)
}
