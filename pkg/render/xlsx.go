package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/xuri/excelize/v2"
)

// ChartsSheet holds the embedded chart images of a workbook. ParseWorkbook
// ignores it.
const ChartsSheet = "Charts"

const maxSheetName = 31

// writeXLSX writes one worksheet per table: header in row 1, data below, all
// cells as text so values round-trip unchanged.
func writeXLSX(w io.Writer, doc *Document, m media) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	tables := doc.tables()
	if len(tables) == 0 {
		tables = []models.Sheet{{Name: ContentSheet, Table: models.Table{Headers: []string{"Text"}, Rows: [][]string{{doc.Title}}}}}
	}

	used := make(map[string]bool)
	for i, s := range tables {
		name := uniqueSheetName(s.Name, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", name, err)
		}

		if err := writeRow(f, name, 1, s.Table.Headers); err != nil {
			return err
		}
		if len(s.Table.Headers) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(s.Table.Headers), 1)
			if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
				return fmt.Errorf("failed to style header of %q: %w", name, err)
			}
			end, _ := excelize.ColumnNumberToName(len(s.Table.Headers))
			if err := f.SetColWidth(name, "A", end, 22); err != nil {
				return fmt.Errorf("failed to size columns of %q: %w", name, err)
			}
		}
		for r, row := range s.Table.Rows {
			if err := writeRow(f, name, r+2, row); err != nil {
				return err
			}
		}
	}

	images := m.charts
	if m.logo != nil {
		images = append([]*imageAsset{m.logo}, images...)
	}
	if m.image != nil {
		images = append(images, m.image)
	}
	if len(images) > 0 {
		sheet := uniqueSheetName(ChartsSheet, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add charts sheet: %w", err)
		}
		row := 1
		for _, img := range images {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			scale := 1.0
			if img.width > chartWidth {
				scale = float64(chartWidth) / float64(img.width)
			}
			err := f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
				Extension: "." + img.format,
				File:      img.data,
				Format:    &excelize.GraphicOptions{AltText: img.name, ScaleX: scale, ScaleY: scale},
			})
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", img.name, err)
			}
			// Default row height is 20px.
			row += int(float64(img.height)*scale)/20 + 2
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %q: %w", row, sheet, err)
	}
	return nil
}

// uniqueSheetName makes name a legal worksheet name that is not yet used.
func uniqueSheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "Sheet"
	}
	clean = truncateRunes(clean, maxSheetName)

	candidate := clean
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(clean, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ParseWorkbook reads every worksheet except ChartsSheet back into sheets.
// Row 1 is the header.
func ParseWorkbook(r io.Reader) ([]models.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []models.Sheet
	for _, name := range f.GetSheetList() {
		if name == ChartsSheet {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		s := models.Sheet{Name: name}
		if len(rows) > 0 {
			s.Table.Headers = rows[0]
			s.Table.Rows = rows[1:]
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}
