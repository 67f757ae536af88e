package models

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatPlain Format = "txt"
)

// AllFormats lists every export format in display order.
var AllFormats = []Format{FormatPDF, FormatDOCX, FormatCSV, FormatXLSX, FormatPlain}

// ParseFormat accepts a format name or file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "docx", "word":
		return FormatDOCX, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "txt", "text", "plain":
		return FormatPlain, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ParseFormats parses a list of format names, dropping duplicates.
func ParseFormats(values []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var formats []Format
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := ParseFormat(part)
			if err != nil {
				return nil, err
			}
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	return formats, nil
}

func (f Format) Extension() string { return "." + string(f) }

func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ReportArtifact is a finished export. Warnings carries the messages of
// non-fatal render errors that degraded it.
type ReportArtifact struct {
	Format            Format   `json:"format" yaml:"format"`
	Payload           []byte   `json:"-" yaml:"-"`
	SuggestedFilename string   `json:"suggested_filename" yaml:"suggested_filename"`
	Warnings          []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
