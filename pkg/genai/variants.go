package genai

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxVariants bounds how many completions one run may request.
const MaxVariants = 5

// VariantResult is the outcome of one variant request. Index is zero-based
// and matches the position of the prompt it came from.
type VariantResult struct {
	Index int
	Text  string
	Err   error
}

// GenerateVariants requests one completion per prompt concurrently. Calls are
// independent: one failure does not cancel the others. Results come back in
// prompt order regardless of completion order.
func GenerateVariants(ctx context.Context, gen Generator, prompts []string) ([]VariantResult, error) {
	if len(prompts) == 0 {
		return nil, nil
	}
	if len(prompts) > MaxVariants {
		return nil, fmt.Errorf("at most %d variants may be generated, got %d", MaxVariants, len(prompts))
	}

	results := make([]VariantResult, len(prompts))
	var g errgroup.Group
	g.SetLimit(MaxVariants)

	for i, p := range prompts {
		g.Go(func() error {
			text, err := gen.Generate(ctx, p)
			results[i] = VariantResult{Index: i, Text: text, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// FirstError returns the error of the lowest-indexed failed variant.
func FirstError(results []VariantResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
