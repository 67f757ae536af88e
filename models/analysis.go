package models

// Sentiment holds polarity in [-1, 1] and subjectivity in [0, 1].
type Sentiment struct {
	Polarity     float64 `json:"polarity" yaml:"polarity"`
	Subjectivity float64 `json:"subjectivity" yaml:"subjectivity"`
}

type WordCount struct {
	Word  string `json:"word" yaml:"word"`
	Count int    `json:"count" yaml:"count"`
}

type Keyword struct {
	Term  string  `json:"term" yaml:"term"`
	Score float64 `json:"score" yaml:"score"`
}

type Topic struct {
	Label string   `json:"label" yaml:"label"`
	Terms []string `json:"terms" yaml:"terms"`
}

// AnalysisBundle is derived from a single text and nothing else. For empty or
// whitespace-only input every field is at its zero value.
type AnalysisBundle struct {
	Sentiment          Sentiment        `json:"sentiment" yaml:"sentiment"`
	TopWords           []WordCount      `json:"top_words" yaml:"top_words"`
	Keywords           []Keyword        `json:"keywords" yaml:"keywords"`
	Topics             []Topic          `json:"topics" yaml:"topics"`
	Readability        float64          `json:"readability" yaml:"readability"`
	Clusters           map[int][]string `json:"clusters" yaml:"clusters"`
	Language           string           `json:"language,omitempty" yaml:"language,omitempty"`
	LanguageConfidence float64          `json:"language_confidence,omitempty" yaml:"language_confidence,omitempty"`
	WordCount          int              `json:"word_count" yaml:"word_count"`
	SentenceCount      int              `json:"sentence_count" yaml:"sentence_count"`
}

// IsEmpty reports whether the bundle carries no results at all.
func (b AnalysisBundle) IsEmpty() bool {
	return b.Sentiment == (Sentiment{}) &&
		len(b.TopWords) == 0 &&
		len(b.Keywords) == 0 &&
		len(b.Topics) == 0 &&
		b.Readability == 0 &&
		len(b.Clusters) == 0 &&
		b.Language == "" &&
		b.WordCount == 0
}

// KeywordTerms returns the keyword terms in rank order.
func (b AnalysisBundle) KeywordTerms() []string {
	terms := make([]string, 0, len(b.Keywords))
	for _, k := range b.Keywords {
		terms = append(terms, k.Term)
	}
	return terms
}
