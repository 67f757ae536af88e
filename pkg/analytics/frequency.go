package analytics

import (
	"sort"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// WordFrequency counts whitespace-separated tokens exactly as written: no
// case folding, stemming or stop-word removal. Ties keep first-occurrence
// order.
func (a *TextAnalyzer) WordFrequency(text string, n int) []models.WordCount {
	words := strings.Fields(text)
	if len(words) == 0 || n <= 0 {
		return nil
	}

	frequencies := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, word := range words {
		if _, ok := firstSeen[word]; !ok {
			firstSeen[word] = i
		}
		frequencies[word]++
	}

	counts := make([]models.WordCount, 0, len(frequencies))
	for k, v := range frequencies {
		counts = append(counts, models.WordCount{Word: k, Count: v})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return firstSeen[counts[i].Word] < firstSeen[counts[j].Word]
	})

	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
