package render

import (
	"fmt"
	"io"

	"github.com/fumiama/go-docx"
)

// A4 content width in twips.
const docxTableWidth = 9000

// writeDOCX writes the logo, a "<title>" heading, one paragraph per body
// paragraph, the image, tables and charts.
func writeDOCX(w io.Writer, doc *Document, m media) error {
	d := docx.New().WithDefaultTheme().WithA4Page()

	if m.logo != nil {
		if _, err := d.AddParagraph().AddInlineDrawing(m.logo.data); err != nil {
			return fmt.Errorf("failed to embed logo: %w", err)
		}
	}

	if doc.Title != "" {
		d.AddParagraph().Justification("center").AddText(doc.Title).Size("36").Bold()
	}
	if doc.Subtitle != "" {
		d.AddParagraph().Justification("center").AddText(doc.Subtitle).Size("22").Italic()
	}

	for _, para := range paragraphs(doc.Body) {
		d.AddParagraph().AddText(para).Size("24")
	}

	if m.image != nil {
		if _, err := d.AddParagraph().AddInlineDrawing(m.image.data); err != nil {
			return fmt.Errorf("failed to embed image: %w", err)
		}
	}

	for _, s := range doc.Sections {
		d.AddParagraph().AddText(s.Name).Size("28").Bold()

		cols := len(s.Table.Headers)
		for _, row := range s.Table.Rows {
			if len(row) > cols {
				cols = len(row)
			}
		}
		if cols == 0 {
			continue
		}

		t := d.AddTable(len(s.Table.Rows)+1, cols, docxTableWidth, nil)
		for i := 0; i < cols; i++ {
			t.TableRows[0].TableCells[i].AddParagraph().AddText(cell(s.Table.Headers, i)).Bold()
		}
		for r, row := range s.Table.Rows {
			for i := 0; i < cols; i++ {
				t.TableRows[r+1].TableCells[i].AddParagraph().AddText(cell(row, i))
			}
		}
	}

	for _, c := range m.charts {
		if _, err := d.AddParagraph().AddInlineDrawing(c.data); err != nil {
			return fmt.Errorf("failed to embed %s: %w", c.name, err)
		}
	}

	_, err := d.WriteTo(w)
	return err
}
