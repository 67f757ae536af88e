package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// Renderer writes Documents in any of the export formats.
type Renderer struct {
	client *http.Client
	logger *slog.Logger
	charts bool
	now    func() time.Time
}

type Option func(*Renderer)

// WithHTTPClient sets the client used to download remote images.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Renderer) { r.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithCharts toggles chart rendering. Charts are on by default.
func WithCharts(enabled bool) Option {
	return func(r *Renderer) { r.charts = enabled }
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
		charts: true,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// media is everything a page-layout format embeds besides text.
type media struct {
	logo   *imageAsset
	image  *imageAsset
	charts []*imageAsset
}

// Render produces one artifact. Missing assets degrade the artifact and are
// reported in its Warnings; only a write failure returns an error.
func (r *Renderer) Render(ctx context.Context, doc *Document, format models.Format) (models.ReportArtifact, error) {
	artifact := models.ReportArtifact{
		Format:            format,
		SuggestedFilename: doc.Filename + format.Extension(),
	}

	var m media
	var problems []error
	if format == models.FormatPDF || format == models.FormatDOCX || format == models.FormatXLSX {
		m.logo, m.image, problems = r.loadAssets(ctx, doc.Assets)
		if r.charts && len(doc.Charts) > 0 {
			var chartProblems []error
			m.charts, chartProblems = renderCharts(doc.Charts)
			problems = append(problems, chartProblems...)
		}
	}
	if format == models.FormatPDF {
		var pdfProblems []error
		m, pdfProblems = pdfMedia(m)
		problems = append(problems, pdfProblems...)
	}
	for _, p := range problems {
		r.logger.Warn("Rendering without asset", "format", format, "error", p)
		artifact.Warnings = append(artifact.Warnings, p.Error())
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case models.FormatPlain:
		err = writeText(&buf, doc)
	case models.FormatCSV:
		err = writeCSV(&buf, doc)
	case models.FormatXLSX:
		err = writeXLSX(&buf, doc, m)
	case models.FormatPDF:
		err = r.writePDF(&buf, doc, m)
	case models.FormatDOCX:
		err = writeDOCX(&buf, doc, m)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		var re *models.RenderError
		if errors.As(err, &re) {
			return models.ReportArtifact{}, err
		}
		return models.ReportArtifact{}, &models.RenderError{Kind: models.RenderWriteFailure, Format: format, Err: err}
	}

	artifact.Payload = buf.Bytes()
	r.logger.Debug("Rendered artifact", "format", format, "bytes", len(artifact.Payload), "warnings", len(artifact.Warnings))
	return artifact, nil
}

// RenderAll renders doc in every format, stopping at the first write
// failure.
func (r *Renderer) RenderAll(ctx context.Context, doc *Document, formats []models.Format) ([]models.ReportArtifact, error) {
	artifacts := make([]models.ReportArtifact, 0, len(formats))
	for _, f := range formats {
		a, err := r.Render(ctx, doc, f)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func writeText(w io.Writer, doc *Document) error {
	if doc.Title != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", doc.Title); err != nil {
			return err
		}
	}
	if doc.Subtitle != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", doc.Subtitle); err != nil {
			return err
		}
	}
	if doc.Body != "" {
		if _, err := fmt.Fprintf(w, "%s\n", doc.Body); err != nil {
			return err
		}
	}
	for _, s := range doc.Sections {
		if _, err := fmt.Fprintf(w, "\n%s\n", s.Name); err != nil {
			return err
		}
		if len(s.Table.Headers) > 0 {
			if _, err := fmt.Fprintln(w, joinCells(s.Table.Headers)); err != nil {
				return err
			}
		}
		for _, row := range s.Table.Rows {
			if _, err := fmt.Fprintln(w, joinCells(row)); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinCells(cells []string) string {
	var b bytes.Buffer
	for i, c := range cells {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(c)
	}
	return b.String()
}
