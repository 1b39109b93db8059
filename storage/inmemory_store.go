package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const emptyHistory = `{"runs":[{"evaluations":[]}]}`

// InmemoryStore keeps the history as a single JSON document:
//
//	{"runs":[{"evaluations":[{"solution":[1,1],"value":2}]}]}
//
// The last run is the current one.
type InmemoryStore struct {
	mu     sync.Mutex
	values []byte

	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte(emptyHistory),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}

	return nil
}

// NewRun starts a new run and returns its index.
func (i *InmemoryStore) NewRun(ctx context.Context) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	values, err := sjson.SetRawBytes(i.values, "runs.-1", []byte(`{"evaluations":[]}`))
	if err != nil {
		return 0, err
	}

	i.values = values
	return i.runs() - 1, nil
}

// Record appends an evaluation to the current run.
func (i *InmemoryStore) Record(ctx context.Context, solution []float64, value float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	run := i.runs() - 1
	eval := Evaluation{Run: run, Solution: solution, Value: value}

	values, err := sjson.SetBytes(i.values, fmt.Sprintf("runs.%d.evaluations.-1", run), eval)
	if err != nil {
		return fmt.Errorf("Failed to record evaluation: %w", err)
	}

	i.values = values

	if i.isRunning() {
		for _, updateChan := range i.updateChans {
			select {
			case updateChan <- &Update{Run: run, Evaluation: eval}:
			default:
				// Slow listeners miss updates rather than block the server
			}
		}
	}

	return nil
}

// Runs returns the number of runs, the current one included.
func (i *InmemoryStore) Runs() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.runs()
}

func (i *InmemoryStore) Evaluations(run int) ([]Evaluation, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result := gjson.GetBytes(i.values, fmt.Sprintf("runs.%d.evaluations", run))
	if !result.Exists() {
		return nil, fmt.Errorf("No run %d, there are %d", run, i.runs())
	}

	evals := make([]Evaluation, 0, len(result.Array()))
	for _, raw := range result.Array() {
		eval := Evaluation{Run: run}
		if err := json.Unmarshal([]byte(raw.Raw), &eval); err != nil {
			return nil, err
		}

		evals = append(evals, eval)
	}

	return evals, nil
}

// Best returns the evaluation with the lowest value across all runs.
func (i *InmemoryStore) Best() (best Evaluation, found bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	gjson.GetBytes(i.values, "runs").ForEach(func(runIdx, run gjson.Result) bool {
		run.Get("evaluations").ForEach(func(_, raw gjson.Result) bool {
			value := raw.Get("value").Float()
			if found && value >= best.Value {
				return true
			}

			eval := Evaluation{Run: int(runIdx.Int())}
			if err := json.Unmarshal([]byte(raw.Raw), &eval); err == nil {
				best, found = eval, true
			}

			return true
		})

		return true
	})

	return best, found
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, 255)
	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.GetBytes(values, "runs.0.evaluations").IsArray() {
		return fmt.Errorf("Failed to restore: not an evaluation history")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

func (i *InmemoryStore) runs() int {
	return int(gjson.GetBytes(i.values, "runs.#").Int())
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
