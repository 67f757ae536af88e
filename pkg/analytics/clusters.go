package analytics

import (
	"sort"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// keywordPoint is a keyword placed at its TF-IDF vector.
type keywordPoint struct {
	rank   int
	term   string
	coords clusters.Coordinates
}

func (p keywordPoint) Coordinates() clusters.Coordinates { return p.coords }

func (p keywordPoint) Distance(point clusters.Coordinates) float64 {
	return p.coords.Distance(point)
}

// Clusters groups keywords with k-means, k = min(3, len(keywords)). Every id
// in 0..k-1 is present in the result even when its cluster is empty. Ids are
// ordered by descending cluster center so the highest scoring group is 0.
func (a *TextAnalyzer) Clusters(keywords []models.Keyword) map[int][]string {
	if len(keywords) == 0 {
		return nil
	}

	k := MaxClusterSize
	if len(keywords) < k {
		k = len(keywords)
	}

	dataset := make(clusters.Observations, 0, len(keywords))
	for i, kw := range keywords {
		dataset = append(dataset, keywordPoint{rank: i, term: kw.Term, coords: clusters.Coordinates{kw.Score}})
	}

	result := make(map[int][]string, k)
	for id := 0; id < k; id++ {
		result[id] = []string{}
	}

	partition, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		// Only possible for k > len(dataset), which cannot happen here
		result[0] = models.AnalysisBundle{Keywords: keywords}.KeywordTerms()
		return result
	}

	sort.SliceStable(partition, func(i, j int) bool {
		return center(partition[i]) > center(partition[j])
	})

	// A keyword reassigned to an empty cluster in the final iteration can be
	// listed twice; the first cluster keeps it.
	placed := make(map[int]bool, len(keywords))
	for id, c := range partition {
		points := make([]keywordPoint, 0, len(c.Observations))
		for _, o := range c.Observations {
			if p, ok := o.(keywordPoint); ok && !placed[p.rank] {
				placed[p.rank] = true
				points = append(points, p)
			}
		}
		sort.Slice(points, func(i, j int) bool { return points[i].rank < points[j].rank })
		for _, p := range points {
			result[id] = append(result[id], p.term)
		}
	}
	return result
}

func center(c clusters.Cluster) float64 {
	if len(c.Center) == 0 {
		return 0
	}
	return c.Center[0]
}
