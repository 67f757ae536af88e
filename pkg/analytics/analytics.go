// Package analytics computes statistics over a single text. Every analysis
// tolerates empty input and returns its zero value for it.
package analytics

import (
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/jonreiter/govader"
	"github.com/pemistahl/lingua-go"
)

const (
	TopWordsLimit  = 10
	KeywordLimit   = 5
	TopicCount     = 3
	TermsPerTopic  = 10
	MaxClusterSize = 3
)

// Analyzer is the capability surface of the text analysis stage.
type Analyzer interface {
	Sentiment(text string) models.Sentiment
	WordFrequency(text string, n int) []models.WordCount
	Keywords(text string, n int) []models.Keyword
	Topics(text string, k, termsPerTopic int) []models.Topic
	Readability(text string) float64
	Clusters(keywords []models.Keyword) map[int][]string
	Language(text string) (string, float64)
	Analyze(text string) models.AnalysisBundle
}

// TextAnalyzer is the only Analyzer implementation.
type TextAnalyzer struct {
	vader    *govader.SentimentIntensityAnalyzer
	detector lingua.LanguageDetector
}

var _ Analyzer = (*TextAnalyzer)(nil)

// detectable bounds the language models lingua has to load.
var detectable = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
}

func NewTextAnalyzer() *TextAnalyzer {
	return &TextAnalyzer{
		vader: govader.NewSentimentIntensityAnalyzer(),
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectable...).
			WithMinimumRelativeDistance(0.1).
			Build(),
	}
}

// Analyze runs every sub-analysis. Sub-analyses are independent of each
// other except clustering, which groups the extracted keywords.
func (a *TextAnalyzer) Analyze(text string) models.AnalysisBundle {
	if isBlank(text) {
		return models.AnalysisBundle{}
	}

	keywords := a.Keywords(text, KeywordLimit)
	lang, confidence := a.Language(text)

	return models.AnalysisBundle{
		Sentiment:          a.Sentiment(text),
		TopWords:           a.WordFrequency(text, TopWordsLimit),
		Keywords:           keywords,
		Topics:             a.Topics(text, TopicCount, TermsPerTopic),
		Readability:        a.Readability(text),
		Clusters:           a.Clusters(keywords),
		Language:           lang,
		LanguageConfidence: confidence,
		WordCount:          len(strings.Fields(text)),
		SentenceCount:      countSentences(text),
	}
}

// Sentiment scores text with the VADER lexicon. Polarity is the compound
// score; subjectivity is the share of the text's lexicon mass that is not
// neutral.
func (a *TextAnalyzer) Sentiment(text string) models.Sentiment {
	if isBlank(text) {
		return models.Sentiment{}
	}

	scores := a.vader.PolarityScores(text)
	return models.Sentiment{
		Polarity:     clamp(scores.Compound, -1, 1),
		Subjectivity: clamp(scores.Positive+scores.Negative, 0, 1),
	}
}

// Language returns the ISO 639-1 code of the detected language and the
// detector's confidence in it. Both are empty when detection is unsure.
func (a *TextAnalyzer) Language(text string) (string, float64) {
	if isBlank(text) {
		return "", 0
	}

	lang, ok := a.detector.DetectLanguageOf(text)
	if !ok {
		return "", 0
	}
	return strings.ToLower(lang.IsoCode639_1().String()), a.detector.ComputeLanguageConfidence(text, lang)
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
