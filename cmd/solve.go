package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/elpida/client"
	"github.com/luma/elpida/transport"
)

var (
	solveDimension  int
	solveIterations int
	solveSeed       int64
)

func init() {
	flags := SolveCmd.Flags()

	flags.IntVarP(&solveDimension, "dimension", "d", 10, "the dimension of the random solutions")
	flags.IntVarP(&solveIterations, "iterations", "n", 5, "how many solutions to evaluate")
	flags.Int64Var(&solveSeed, "seed", 0, "the random seed, 0 picks one from the clock")
}

var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run a random search solver against a problem server",
	Long: `Run a random search solver against a problem server

Evaluates random binary solutions, starts a new run halfway through and
finally stops the problem server.

Usage
	elpida solve --query query --reply reply --dimension 10

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pair, err := transport.OpenFIFOPair(conf.Query, conf.Reply, transport.Options{
			MaxPayload: conf.MaxPayload,
			Log:        log.Named("transport"),
		})
		if err != nil {
			return err
		}

		seed := solveSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		c := client.New(pair, log.Named("client"))
		rng := rand.New(rand.NewSource(seed))

		return randomSearch(cmd.Context(), c, rng, solveDimension, solveIterations, cmd.OutOrStdout())
	},
}

// randomSearch evaluates iterations random binary solutions and prints one
// line per call. A new run starts before the third iteration.
func randomSearch(ctx context.Context, c *client.Client, rng *rand.Rand, dimension, iterations int, out io.Writer) error {
	for i := 0; i < iterations; i++ {
		if i == 3 {
			if err := c.NewRun(ctx); err != nil {
				return err
			}
		}

		solution := make([]float64, dimension)
		for j := range solution {
			solution[j] = float64(rng.Intn(2))
		}

		result, err := c.Call(ctx, solution)
		if err != nil {
			return err
		}

		value := "None"
		if result.OK() {
			value = strconv.FormatFloat(result.Value, 'g', -1, 64)
		} else {
			log.Warn("Evaluation failed", zap.Int("iteration", i), zap.Error(result.Err))
		}

		fmt.Fprintf(out, "f(%s) = %s\n", formatSolution(solution), value)
	}

	return c.Stop(ctx)
}

func formatSolution(solution []float64) string {
	parts := make([]string, len(solution))
	for i, x := range solution {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
