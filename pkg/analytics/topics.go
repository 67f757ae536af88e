package analytics

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"gonum.org/v1/gonum/mat"
)

const (
	nmfIterations = 200
	nmfSeed       = 42
	nmfEpsilon    = 1e-10
)

// Topics factorises the 1xV TF-IDF matrix into k components with
// multiplicative-update NMF and reports the top terms of each component.
// On one document the components are near duplicates of each other.
func (a *TextAnalyzer) Topics(text string, k, termsPerTopic int) []models.Topic {
	vec := vectorize(text)
	if vec == nil || k <= 0 || termsPerTopic <= 0 {
		return nil
	}

	v := len(vec.terms)
	x := mat.NewDense(1, v, mat.Col(nil, 0, vec.weights))
	_, h := factorize(x, k)

	topics := make([]models.Topic, 0, k)
	for t := 0; t < k; t++ {
		row := mat.Row(nil, t, h)
		idx := make([]int, v)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool { return row[idx[i]] > row[idx[j]] })

		n := termsPerTopic
		if n > v {
			n = v
		}
		terms := make([]string, 0, n)
		for _, i := range idx[:n] {
			terms = append(terms, vec.terms[i])
		}

		labelTerms := terms
		if len(labelTerms) > 3 {
			labelTerms = labelTerms[:3]
		}
		topics = append(topics, models.Topic{
			Label: fmt.Sprintf("Topic %d: %s", t+1, strings.Join(labelTerms, ", ")),
			Terms: terms,
		})
	}
	return topics
}

// factorize returns non-negative W (n x k) and H (k x m) with X ~ WH.
func factorize(x *mat.Dense, k int) (*mat.Dense, *mat.Dense) {
	n, m := x.Dims()
	rng := rand.New(rand.NewSource(nmfSeed))

	// Scale the random start to the data, as scikit-learn's random init does
	avg := mat.Sum(x) / float64(n*m)
	scale := math.Sqrt(avg / float64(k))

	w := mat.NewDense(n, k, nil)
	h := mat.NewDense(k, m, nil)
	w.Apply(func(i, j int, _ float64) float64 { return scale*rng.Float64() + nmfEpsilon }, w)
	h.Apply(func(i, j int, _ float64) float64 { return scale*rng.Float64() + nmfEpsilon }, h)

	for iter := 0; iter < nmfIterations; iter++ {
		var wtx, wtw, wtwh mat.Dense
		wtx.Mul(w.T(), x)
		wtw.Mul(w.T(), w)
		wtwh.Mul(&wtw, h)
		h.Apply(func(i, j int, val float64) float64 {
			return val * wtx.At(i, j) / (wtwh.At(i, j) + nmfEpsilon)
		}, h)

		var xht, hht, whht mat.Dense
		xht.Mul(x, h.T())
		hht.Mul(h, h.T())
		whht.Mul(w, &hht)
		w.Apply(func(i, j int, val float64) float64 {
			return val * xht.At(i, j) / (whht.At(i, j) + nmfEpsilon)
		}, w)
	}

	return w, h
}
