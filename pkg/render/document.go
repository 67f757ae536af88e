// Package render turns pipeline results into exportable artifacts. Every
// format is produced from the same Document value.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// ContentSheet is the table that carries free text in tabular formats.
const ContentSheet = "Content"

type ChartKind string

const (
	ChartPie  ChartKind = "pie"
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
)

// Series is one line of a line chart.
type Series struct {
	Name   string
	Values []float64
}

// Chart describes a chart to draw. Pie and bar charts use Values; line
// charts use Series, one value per label.
type Chart struct {
	Title  string
	Kind   ChartKind
	Labels []string
	Values []float64
	Series []Series
}

// Assets are optional images. When one cannot be loaded the artifact is still
// produced without it.
type Assets struct {
	LogoPath string
	ImageURL string
}

// Document is the format-independent description of one report.
type Document struct {
	Filename string // base name without extension
	Title    string
	Subtitle string
	Body     string
	// TabularBody adds Body as a ContentSheet table in CSV and XLSX output.
	TabularBody bool
	Sections    []models.Sheet
	Charts      []Chart
	Assets      Assets
}

// tables returns the sections emitted by the tabular formats.
func (d *Document) tables() []models.Sheet {
	if !d.TabularBody || strings.TrimSpace(d.Body) == "" {
		return d.Sections
	}

	content := models.Sheet{Name: ContentSheet, Table: models.Table{Headers: []string{"Text"}}}
	for _, para := range paragraphs(d.Body) {
		content.Table.Rows = append(content.Table.Rows, []string{para})
	}
	return append([]models.Sheet{content}, d.Sections...)
}

// paragraphs splits text on blank lines and trims each paragraph.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GenerationDocument wraps one completion. Heading and filename follow the
// factsheet export names: "<name> Factsheet" and factsheet.<ext> for a
// single result, with a version suffix when several variants exist.
func GenerationDocument(subject string, gen models.GenerationResult, variants int, assets Assets) *Document {
	title := strings.TrimSpace(subject)
	filename := "report"
	if gen.SourcePrompt.Kind == models.TemplateFactsheet || gen.SourcePrompt.Kind == models.TemplateFactsheetVersion {
		title = strings.TrimSpace(subject + " Factsheet")
		filename = "factsheet"
	} else if gen.SourcePrompt.Kind != "" {
		filename = string(gen.SourcePrompt.Kind)
		if title == "" {
			title = humanize(string(gen.SourcePrompt.Kind))
		}
	}

	if variants > 1 {
		title = fmt.Sprintf("%s - Version %d", title, gen.Variant)
		filename = fmt.Sprintf("%s_version_%d", filename, gen.Variant)
	}

	return &Document{
		Filename:    filename,
		Title:       title,
		Body:        gen.Text,
		TabularBody: true,
		Assets:      assets,
	}
}

// AnalysisDocument reports a scrape and its analysis. suggestions may be
// empty.
func AnalysisDocument(scrape models.ScrapeResult, bundle models.AnalysisBundle, suggestions string) *Document {
	title := "Page Analysis"
	if scrape.Title != "" {
		title = "Page Analysis: " + scrape.Title
	}

	summary := models.Sheet{Name: "Summary", Table: models.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"URL", scrape.URL},
			{"Title", scrape.Title},
			{"Fetch Status", scrape.Status.String()},
			{"Language", bundle.Language},
			{"Word Count", strconv.Itoa(bundle.WordCount)},
			{"Sentence Count", strconv.Itoa(bundle.SentenceCount)},
			{"Readability (FK Grade)", formatFloat(bundle.Readability)},
			{"Sentiment Polarity", formatFloat(bundle.Sentiment.Polarity)},
			{"Sentiment Subjectivity", formatFloat(bundle.Sentiment.Subjectivity)},
			{"Links", strconv.Itoa(len(scrape.Links))},
			{"Images", strconv.Itoa(len(scrape.Images))},
		},
	}}

	words := models.Sheet{Name: "Top Words", Table: models.Table{Headers: []string{"Word", "Count"}}}
	var wordLabels []string
	var wordValues []float64
	for _, w := range bundle.TopWords {
		words.Table.Rows = append(words.Table.Rows, []string{w.Word, strconv.Itoa(w.Count)})
		wordLabels = append(wordLabels, w.Word)
		wordValues = append(wordValues, float64(w.Count))
	}

	keywords := models.Sheet{Name: "Keywords", Table: models.Table{Headers: []string{"Term", "Score"}}}
	var kwLabels []string
	var kwValues []float64
	for _, k := range bundle.Keywords {
		keywords.Table.Rows = append(keywords.Table.Rows, []string{k.Term, formatFloat(k.Score)})
		kwLabels = append(kwLabels, k.Term)
		kwValues = append(kwValues, k.Score)
	}

	topics := models.Sheet{Name: "Topics", Table: models.Table{Headers: []string{"Topic", "Terms"}}}
	for _, t := range bundle.Topics {
		topics.Table.Rows = append(topics.Table.Rows, []string{t.Label, strings.Join(t.Terms, ", ")})
	}

	clusters := models.Sheet{Name: "Keyword Clusters", Table: models.Table{Headers: []string{"Cluster", "Terms"}}}
	for id := 0; id < len(bundle.Clusters); id++ {
		clusters.Table.Rows = append(clusters.Table.Rows, []string{strconv.Itoa(id), strings.Join(bundle.Clusters[id], ", ")})
	}

	links := models.Sheet{Name: "Links", Table: models.Table{Headers: []string{"#", "URL"}}}
	for i, l := range scrape.Links {
		links.Table.Rows = append(links.Table.Rows, []string{strconv.Itoa(i + 1), l})
	}

	doc := &Document{
		Filename:    "page_analysis",
		Title:       title,
		Subtitle:    scrape.URL,
		Body:        suggestions,
		TabularBody: true,
		Sections:    []models.Sheet{summary, words, keywords, topics, clusters, links},
	}
	if len(wordValues) > 0 {
		doc.Charts = append(doc.Charts, Chart{Title: "Top Words", Kind: ChartBar, Labels: wordLabels, Values: wordValues})
	}
	if len(kwValues) > 0 {
		doc.Charts = append(doc.Charts, Chart{Title: "Keyword Scores", Kind: ChartBar, Labels: kwLabels, Values: kwValues})
	}
	return doc
}

// FundDocument lays a fund report out in template order with charts for the
// composition, sector and performance sheets.
func FundDocument(report models.FundReport) *Document {
	name := report.Overview.FundName
	if name == "" {
		name = "Fund"
	}

	doc := &Document{
		Filename: "fund_report",
		Title:    name + " Report",
		Subtitle: strings.Trim(strings.Join([]string{report.Overview.FundType, report.Overview.BaseCurrency}, " | "), " |"),
		Body:     report.Commentary,
		Sections: report.Sheets(),
	}

	if c, ok := weightChart("Portfolio Composition", report.Composition); ok {
		doc.Charts = append(doc.Charts, c)
	}
	if c, ok := weightChart("Sector Allocation", report.Sectors); ok {
		doc.Charts = append(doc.Charts, c)
	}

	var holdLabels []string
	var holdValues []float64
	for _, h := range report.Holdings {
		if v, ok := models.ParseNumber(h.Weight); ok && h.Name != "" {
			holdLabels = append(holdLabels, h.Name)
			holdValues = append(holdValues, v)
		}
	}
	if len(holdValues) > 0 {
		doc.Charts = append(doc.Charts, Chart{Title: "Top Holdings Weight", Kind: ChartBar, Labels: holdLabels, Values: holdValues})
	}

	periods := models.FundLayout[1].Columns[1:]
	perf := Chart{Title: "Performance", Kind: ChartLine, Labels: periods}
	for _, p := range report.Performance {
		s := Series{Name: p.Metric}
		valid := true
		for _, r := range p.Returns {
			v, ok := models.ParseNumber(r)
			if !ok {
				valid = false
				break
			}
			s.Values = append(s.Values, v)
		}
		if valid {
			perf.Series = append(perf.Series, s)
		}
	}
	if len(perf.Series) > 0 {
		doc.Charts = append(doc.Charts, perf)
	}
	return doc
}

// FundTemplateDocument is the blank template for tabular export.
func FundTemplateDocument() *Document {
	return &Document{
		Filename: "fund_template",
		Title:    "Fund Report Template",
		Sections: models.FundTemplate().Sheets(),
	}
}

func weightChart(title string, rows []models.WeightRow) (Chart, bool) {
	c := Chart{Title: title, Kind: ChartPie}
	for _, r := range rows {
		if v, ok := models.ParseNumber(r.Weight); ok && v > 0 {
			c.Labels = append(c.Labels, r.Name)
			c.Values = append(c.Values, v)
		}
	}
	return c, len(c.Values) > 0
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func humanize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
