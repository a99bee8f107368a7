package optim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch(
		[]string{"cte", "steer_smooth"},
		[][]float64{{10, 100, 1000}, {5, 50}},
	)
	if g.Size() != 6 {
		t.Fatalf("size = %d, want 6", g.Size())
	}

	// Quadratic bowl with minimum at cte=100, steer_smooth=50.
	eval := func(ctx context.Context, p map[string]float64) (float64, error) {
		a := math.Log10(p["cte"]) - 2
		b := p["steer_smooth"] - 50
		return a*a + b*b, nil
	}

	params, score, err := g.Search(context.Background(), eval)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if params["cte"] != 100 || params["steer_smooth"] != 50 {
		t.Errorf("best params = %v", params)
	}
	if score != 0 {
		t.Errorf("score = %f, want 0", score)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g := NewGridSearch([]string{"w"}, [][]float64{{1, 2, 3}})

	eval := func(ctx context.Context, p map[string]float64) (float64, error) {
		if p["w"] == 2 {
			return 0, errors.New("diverged")
		}
		return p["w"], nil
	}

	params, score, err := g.Search(context.Background(), eval)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if params["w"] != 1 || score != 1 {
		t.Errorf("got %v score %f", params, score)
	}
}

func TestGridSearchAllFail(t *testing.T) {
	g := NewGridSearch([]string{"w"}, [][]float64{{1}})
	_, _, err := g.Search(context.Background(), func(ctx context.Context, p map[string]float64) (float64, error) {
		return 0, errors.New("diverged")
	})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
}

func TestGridSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGridSearch([]string{"w"}, [][]float64{{1, 2}})
	_, _, err := g.Search(ctx, func(ctx context.Context, p map[string]float64) (float64, error) {
		return p["w"], nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
