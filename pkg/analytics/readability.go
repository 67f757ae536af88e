package analytics

import (
	"math"
	"strings"
	"unicode"
)

// Readability returns the Flesch-Kincaid grade level of text.
func (a *TextAnalyzer) Readability(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	syllables := 0
	counted := 0
	for _, w := range words {
		n := countSyllables(w)
		if n == 0 {
			continue
		}
		syllables += n
		counted++
	}
	if counted == 0 {
		return 0
	}

	sentences := countSentences(text)
	grade := 0.39*(float64(counted)/float64(sentences)) + 11.8*(float64(syllables)/float64(counted)) - 15.59
	if math.IsNaN(grade) || math.IsInf(grade, 0) {
		return 0
	}
	return math.Round(grade*100) / 100
}

// countSentences counts runs of terminal punctuation. Text without any still
// counts as one sentence.
func countSentences(text string) int {
	if isBlank(text) {
		return 0
	}

	count := 0
	inTerminator := false
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				count++
			}
			inTerminator = true
			continue
		}
		if !unicode.IsSpace(r) {
			inTerminator = false
		}
	}

	// Trailing words after the last terminator form a sentence too
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if last := trimmed[len(trimmed)-1]; last != '.' && last != '!' && last != '?' {
		count++
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups. Tokens
// without letters count zero.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }))
	if word == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
