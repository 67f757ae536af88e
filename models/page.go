package models

import "strings"

// Page is the main-content view of a fetched document as extracted by the
// readability parser.
type Page struct {
	URL      string         `json:"url" yaml:"url"`
	Title    string         `json:"title" yaml:"title"`
	Excerpt  string         `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	SiteName string         `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	Content  []ContentBlock `json:"content" yaml:"content"`
}

// Table is a headed grid of cells. It is used both for tables lifted out of
// HTML and for the tabular sections of rendered reports.
type Table struct {
	Headers []string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// ContentBlock represents a semantic block of text on a page.
type ContentBlock struct {
	Type  string `json:"type" yaml:"type"` // e.g., "h1", "h2", "p", "li", "table"
	Text  string `json:"text" yaml:"text"`
	Table *Table `json:"table,omitempty" yaml:"table,omitempty"`
}

// ToPlainText concatenates readable text from all content blocks.
func (p *Page) ToPlainText() string {
	var sb strings.Builder

	for _, block := range p.Content {
		switch block.Type {
		case "table":
			if block.Table == nil {
				continue
			}
			for _, row := range block.Table.Rows {
				sb.WriteString(strings.Join(row, " "))
				sb.WriteString("\n")
			}
		default:
			sb.WriteString(block.Text)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
