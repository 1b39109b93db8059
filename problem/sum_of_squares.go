package problem

import "context"

// SumOfSquares is f(x) = x0² + x1² + ...
type SumOfSquares struct {
	dimension int

	runs        int
	evaluations int
}

func NewSumOfSquares(dimension int) *SumOfSquares {
	return &SumOfSquares{dimension: dimension}
}

func (p *SumOfSquares) Evaluate(ctx context.Context, solution []float64) (float64, error) {
	if err := validate(solution, p.dimension); err != nil {
		return 0, err
	}

	p.evaluations++

	v := 0.0
	for _, x := range solution {
		v += x * x
	}

	return v, nil
}

func (p *SumOfSquares) NewRun(ctx context.Context) error {
	p.runs++
	return nil
}

// Runs is the number of new_run queries received.
func (p *SumOfSquares) Runs() int {
	return p.runs
}

// Evaluations is the number of successful evaluations.
func (p *SumOfSquares) Evaluations() int {
	return p.evaluations
}

var _ Problem = (*SumOfSquares)(nil)
