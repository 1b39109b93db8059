// Package problem holds the evaluators a problem server can serve.
package problem

import (
	"context"
	"math"
	"sort"

	"github.com/luma/elpida/protocol"
)

// Problem is an objective function together with its run bookkeeping.
type Problem interface {
	Evaluate(ctx context.Context, solution []float64) (float64, error)
	NewRun(ctx context.Context) error
}

type factory func(dimension int) Problem

var problems = map[string]factory{
	"sum_of_squares": func(dimension int) Problem { return NewSumOfSquares(dimension) },
}

// New returns the problem registered under name. A dimension of zero accepts
// solutions of any size.
func New(name string, dimension int) (Problem, error) {
	if dimension < 0 {
		return nil, protocol.NewError(protocol.KindInvalidArgument, "negative dimension %d", dimension)
	}

	build, ok := problems[name]
	if !ok {
		return nil, protocol.NewError(protocol.KindInvalidArgument, "unknown problem %q, expected one of %v", name, Names())
	}

	return build(dimension), nil
}

// Names lists the registered problems.
func Names() []string {
	names := make([]string, 0, len(problems))
	for name := range problems {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// validate checks a solution against the expected dimension and rejects
// components no objective can make sense of.
func validate(solution []float64, dimension int) error {
	if dimension > 0 && len(solution) != dimension {
		return protocol.NewError(protocol.KindDimensionMismatch,
			"expected a solution of dimension %d, got %d", dimension, len(solution))
	}

	for i, x := range solution {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return protocol.NewError(protocol.KindSolutionMismatch, "solution[%d] is %v", i, x)
		}
	}

	return nil
}
