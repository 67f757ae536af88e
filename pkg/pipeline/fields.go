package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/genai"
)

// maxPromptText caps the page text substituted into a prompt, in runes.
const maxPromptText = 15000

// scrapeFieldNames are the prompt fields ScrapeFields fills in. Validation
// treats them as provided.
var scrapeFieldNames = []string{
	"url", "page_title", "scraped_text", "top_words", "top_keywords", "topics",
	"sentiment_polarity", "sentiment_subjectivity", "readability", "language",
	"link_count", "image_count",
}

// ScrapeFields maps a scrape and its analysis onto prompt fields. bundle may
// be nil.
func ScrapeFields(res models.ScrapeResult, bundle *models.AnalysisBundle) map[string]string {
	fields := map[string]string{
		"url":          res.URL,
		"page_title":   res.Title,
		"scraped_text": truncate(res.Text, maxPromptText),
		"link_count":   strconv.Itoa(len(res.Links)),
		"image_count":  strconv.Itoa(len(res.Images)),
	}
	if bundle == nil {
		return fields
	}

	words := make([]string, 0, len(bundle.TopWords))
	for _, w := range bundle.TopWords {
		words = append(words, fmt.Sprintf("%s (%d)", w.Word, w.Count))
	}
	topics := make([]string, 0, len(bundle.Topics))
	for _, t := range bundle.Topics {
		topics = append(topics, fmt.Sprintf("%s: %s", t.Label, strings.Join(t.Terms, ", ")))
	}

	fields["top_words"] = strings.Join(words, ", ")
	fields["top_keywords"] = strings.Join(bundle.KeywordTerms(), ", ")
	fields["topics"] = strings.Join(topics, "; ")
	fields["sentiment_polarity"] = strconv.FormatFloat(bundle.Sentiment.Polarity, 'f', 2, 64)
	fields["sentiment_subjectivity"] = strconv.FormatFloat(bundle.Sentiment.Subjectivity, 'f', 2, 64)
	fields["readability"] = strconv.FormatFloat(bundle.Readability, 'f', 1, 64)
	fields["language"] = bundle.Language
	return fields
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// prepare validates a request and fills in its defaults. It returns the
// template the run prompts with.
func (c *Controller) prepare(req Request) (Request, models.TemplateKind, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return req, "", err
	}
	req.Kind = kind

	fields := make(map[string]string, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = strings.TrimSpace(v)
	}
	req.Fields = fields
	req.URL = strings.TrimSpace(req.URL)

	if req.Variants == 0 {
		req.Variants = 1
	}
	if req.Variants < 1 || req.Variants > genai.MaxVariants {
		return req, "", fmt.Errorf("variants must be between 1 and %d, got %d", genai.MaxVariants, req.Variants)
	}

	tmpl := req.Template
	switch kind {
	case KindFactsheet:
		if tmpl == "" {
			tmpl = models.TemplateFactsheet
		}
		if tmpl == models.TemplateFactsheet && req.Variants > 1 {
			tmpl = models.TemplateFactsheetVersion
		}
		return req, tmpl, c.deps.Prompts.Validate(tmpl, req.Fields, "version")

	case KindScrape:
		if tmpl == "" {
			tmpl = models.TemplateContentSuggestions
		}
		err := c.deps.Prompts.Validate(tmpl, req.Fields, scrapeFieldNames...)
		if req.URL == "" {
			return req, tmpl, withMissing(err, "url")
		}
		return req, tmpl, err

	case KindAnalyze:
		if req.URL == "" {
			return req, "", &models.ValidationError{Missing: []string{"url"}}
		}
		req.Variants = 1
		return req, "", nil

	case KindFund:
		if req.Fund == nil {
			return req, "", &models.ValidationError{Missing: []string{"fund_report"}}
		}
		req.Variants = 1
		if tmpl == "" {
			tmpl = models.TemplateFundCommentary
		}
		if req.Fund.Commentary != "" || req.SkipCommentary {
			if len(req.Formats) == 0 {
				return req, tmpl, &models.ValidationError{Missing: []string{"formats"}}
			}
			return req, tmpl, nil
		}
		return req, tmpl, c.deps.Prompts.Validate(tmpl, req.Fund.Fields())
	}
	return req, tmpl, nil
}

// withMissing prepends name to the fields a ValidationError reports, creating
// one when err is nil. Other errors are returned unchanged.
func withMissing(err error, name string) error {
	if err == nil {
		return &models.ValidationError{Missing: []string{name}}
	}
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	return &models.ValidationError{Missing: append([]string{name}, ve.Missing...)}
}
