package render

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/go-pdf/fpdf"
)

const (
	pdfFont       = "Arial"
	pdfLineHeight = 10
	pdfLogoWidth  = 40
	pxToMM        = 25.4 / 96
)

// pdfMedia re-encodes embedded images as plain PNG. The PDF writer cannot
// read every PNG variant (interlaced images, for one) and an unreadable image
// would fail the whole document.
func pdfMedia(m media) (media, []error) {
	var problems []error
	convert := func(img *imageAsset) *imageAsset {
		if img == nil || img.format == "jpeg" {
			return img
		}
		decoded, _, err := image.Decode(bytes.NewReader(img.data))
		if err == nil {
			var buf bytes.Buffer
			if err = png.Encode(&buf, decoded); err == nil {
				out := *img
				out.data = buf.Bytes()
				out.format = "png"
				return &out
			}
		}
		problems = append(problems, &models.RenderError{Kind: models.RenderMissingAsset, Format: models.FormatPDF, Asset: img.name, Err: err})
		return nil
	}

	out := media{logo: convert(m.logo), image: convert(m.image)}
	for _, c := range m.charts {
		if c = convert(c); c != nil {
			out.charts = append(out.charts, c)
		}
	}
	return out, problems
}

// writePDF lays the document out on A4: logo, title, body text, the image,
// then tables and charts.
func (r *Renderer) writePDF(w io.Writer, doc *Document, m media) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("llm-report-pipeline", true)
	pdf.SetCreationDate(r.now())
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentWidth := pageWidth - left - right

	pdf.AddPage()

	if m.logo != nil {
		placeImage(pdf, m.logo, left, pdfLogoWidth)
		pdf.Ln(4)
	}

	if doc.Title != "" {
		pdf.SetFont(pdfFont, "B", 18)
		pdf.MultiCell(0, pdfLineHeight, tr(doc.Title), "", "C", false)
	}
	if doc.Subtitle != "" {
		pdf.SetFont(pdfFont, "I", 11)
		pdf.MultiCell(0, 7, tr(doc.Subtitle), "", "C", false)
	}
	pdf.Ln(4)

	if doc.Body != "" {
		pdf.SetFont(pdfFont, "", 12)
		pdf.MultiCell(0, pdfLineHeight, tr(doc.Body), "", "", false)
	}

	if m.image != nil {
		pdf.Ln(4)
		placeImage(pdf, m.image, left, imageWidth(m.image, contentWidth))
	}

	for _, s := range doc.Sections {
		pdfTable(pdf, tr, s, contentWidth)
	}

	for _, c := range m.charts {
		pdf.Ln(6)
		placeImage(pdf, c, left, imageWidth(c, contentWidth))
	}

	if err := pdf.Output(w); err != nil {
		return err
	}
	return pdf.Error()
}

func placeImage(pdf *fpdf.Fpdf, img *imageAsset, x, width float64) {
	opts := fpdf.ImageOptions{ImageType: img.format, ReadDpi: false}
	pdf.RegisterImageOptionsReader(img.name, opts, bytes.NewReader(img.data))
	pdf.ImageOptions(img.name, x, -1, width, 0, true, opts, 0, "")
}

func imageWidth(img *imageAsset, limit float64) float64 {
	w := float64(img.width) * pxToMM
	if w > limit {
		return limit
	}
	return w
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, s models.Sheet, width float64) {
	cols := len(s.Table.Headers)
	for _, row := range s.Table.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}

	size := 10.0
	if cols > 4 {
		size = 7
	}
	colWidth := width / float64(cols)
	rowHeight := size * 0.7

	pdf.Ln(6)
	pdf.SetFont(pdfFont, "B", 13)
	pdf.MultiCell(0, 8, tr(s.Name), "", "", false)

	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont(pdfFont, "B", size)
	for i := 0; i < cols; i++ {
		pdf.CellFormat(colWidth, rowHeight, tr(fitText(pdf, cell(s.Table.Headers, i), colWidth)), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", size)
	for _, row := range s.Table.Rows {
		for i := 0; i < cols; i++ {
			pdf.CellFormat(colWidth, rowHeight, tr(fitText(pdf, cell(row, i), colWidth)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fitText shortens s with an ellipsis until it fits a cell of width w.
func fitText(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > limit {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r)) + "..."
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
