// Package optim tunes controller weights by exhaustive grid search over
// closed-loop runs.
package optim

import (
	"context"
	"errors"
	"math"
)

// ErrNoResult means no grid point produced a finished run.
var ErrNoResult = errors.New("optim: no grid point completed")

// Evaluate runs one closed loop with the given parameter values and
// returns the score to minimize. Errors skip the grid point.
type Evaluate func(ctx context.Context, params map[string]float64) (float64, error)

// GridSearch sweeps every combination of the given parameter values.
type GridSearch struct {
	names  []string
	ranges [][]float64
}

func NewGridSearch(names []string, ranges [][]float64) *GridSearch {
	return &GridSearch{names: names, ranges: ranges}
}

// Size returns the number of grid points the search will evaluate.
func (g *GridSearch) Size() int {
	size := 1
	for _, r := range g.ranges {
		size *= len(r)
	}
	return size
}

// Search evaluates the full grid and returns the best parameter set and
// its score.
func (g *GridSearch) Search(ctx context.Context, eval Evaluate) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), eval, &best, &bestParams); err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, ErrNoResult
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval Evaluate,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.names) {
		val, err := eval(ctx, current)
		if err != nil {
			return nil
		}
		if val < *best {
			*best = val
			params := make(map[string]float64, len(current))
			for k, v := range current {
				params[k] = v
			}
			*bestParams = params
		}
		return nil
	}

	name := g.names[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val
		if err := g.searchRecursive(ctx, depth+1, next, eval, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
