package analytics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"gonum.org/v1/gonum/mat"
)

// termPattern keeps runs of two or more letters, digits or underscores.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// termVector is a single-document TF-IDF vector. Terms are sorted, so
// vocabulary order is alphabetical.
type termVector struct {
	terms   []string
	weights *mat.VecDense
}

// tokenize lowercases text and drops stop words.
func tokenize(text string) []string {
	var tokens []string
	for _, tok := range termPattern.FindAllString(strings.ToLower(text), -1) {
		if IsStopword(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// vectorize builds the TF-IDF vector of one document. With a single document
// the smoothed IDF is ln(2/2)+1 = 1 for every term, so weights are the L2
// normalised raw counts.
func vectorize(text string) *termVector {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range tokens {
		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	const idf = 1.0
	data := make([]float64, len(terms))
	for i, t := range terms {
		data[i] = float64(counts[t]) * idf
	}

	weights := mat.NewVecDense(len(data), data)
	if norm := mat.Norm(weights, 2); norm > 0 {
		weights.ScaleVec(1/norm, weights)
	}

	return &termVector{terms: terms, weights: weights}
}

// Keywords returns the n highest TF-IDF terms. Ties keep vocabulary order.
func (a *TextAnalyzer) Keywords(text string, n int) []models.Keyword {
	vec := vectorize(text)
	if vec == nil || n <= 0 {
		return nil
	}

	idx := make([]int, len(vec.terms))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return vec.weights.AtVec(idx[i]) > vec.weights.AtVec(idx[j])
	})

	if len(idx) > n {
		idx = idx[:n]
	}

	keywords := make([]models.Keyword, 0, len(idx))
	for _, i := range idx {
		keywords = append(keywords, models.Keyword{
			Term:  vec.terms[i],
			Score: clamp(vec.weights.AtVec(i), 0, 1),
		})
	}
	return keywords
}
