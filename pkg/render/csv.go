package render

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// writeCSV writes every table as a section: a title row, the header row, the
// data rows and a blank separator row.
func writeCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)
	for i, s := range doc.tables() {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{s.Name}); err != nil {
			return err
		}
		if err := cw.Write(s.Table.Headers); err != nil {
			return err
		}
		for _, row := range s.Table.Rows {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseSectionedCSV reads a file written by writeCSV back into sheets. A
// section starts at a record whose only non-empty cell is one of the given
// section names, found at the start of the file or after a blank row; the
// record after it is the header.
func ParseSectionedCSV(r io.Reader, names []string) ([]models.Sheet, error) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var sheets []models.Sheet
	var current *models.Sheet
	expectHeader := false
	boundary := true
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		if boundary {
			if name, ok := sectionTitle(record); ok && known[name] {
				sheets = append(sheets, models.Sheet{Name: name})
				current = &sheets[len(sheets)-1]
				expectHeader = true
				boundary = false
				continue
			}
		}
		if isBlank(record) {
			boundary = true
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("csv data before the first section: %q", strings.Join(record, ","))
		}
		boundary = false
		if expectHeader {
			current.Table.Headers = trimTrailing(record)
			expectHeader = false
			continue
		}
		current.Table.Rows = append(current.Table.Rows, record)
	}
	return sheets, nil
}

// ParseFundCSV reads a fund report CSV using the fund template section names.
func ParseFundCSV(r io.Reader) ([]models.Sheet, error) {
	names := make([]string, 0, len(models.FundLayout))
	for _, l := range models.FundLayout {
		names = append(names, l.Name)
	}
	return ParseSectionedCSV(r, names)
}

func sectionTitle(record []string) (string, bool) {
	title := ""
	for i, cell := range record {
		if cell == "" {
			continue
		}
		if i != 0 {
			return "", false
		}
		title = strings.TrimSpace(cell)
	}
	return title, title != ""
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailing(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}
