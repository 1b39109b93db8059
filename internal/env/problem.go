package env

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ProblemFile describes the problem a server answers for, e.g.
//
//	name = "sum_of_squares"
//	dimension = 10
//	rate_limit = 100.0
//	burst = 10
//	history = "history.json"
type ProblemFile struct {
	Name      string  `toml:"name"`
	Dimension int     `toml:"dimension"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
	History   string  `toml:"history"`
}

func DefaultProblemFile() ProblemFile {
	return ProblemFile{
		Name:  "sum_of_squares",
		Burst: 1,
	}
}

// LoadProblemFile reads a problem file. Keys it does not set keep their
// defaults, unknown keys are an error.
func LoadProblemFile(path string) (ProblemFile, error) {
	problem := DefaultProblemFile()

	meta, err := toml.DecodeFile(path, &problem)
	if err != nil {
		return ProblemFile{}, fmt.Errorf("Failed to read problem file %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ProblemFile{}, fmt.Errorf("Unknown keys in problem file %s: %v", path, undecoded)
	}

	if problem.RateLimit < 0 {
		return ProblemFile{}, fmt.Errorf("rate_limit must not be negative, got %v", problem.RateLimit)
	}

	if problem.Burst < 1 {
		problem.Burst = 1
	}

	return problem, nil
}
