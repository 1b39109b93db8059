package storage

import "context"

// Evaluation is one solution together with the value the problem gave it.
type Evaluation struct {
	Run      int       `json:"-"`
	Solution []float64 `json:"solution"`
	Value    float64   `json:"value"`
}

// Update is sent to listeners whenever an evaluation is recorded.
type Update struct {
	Run        int
	Evaluation Evaluation
}

// Store keeps the history of evaluations, grouped by run.
type Store interface {
	NewRun(ctx context.Context) (int, error)
	Record(ctx context.Context, solution []float64, value float64) error

	Runs() int
	Evaluations(run int) ([]Evaluation, error)
	Best() (Evaluation, bool)

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}
