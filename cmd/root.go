package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/elpida/cmd/gen"
	"github.com/luma/elpida/internal/env"
	"github.com/luma/elpida/protocol"
)

var (
	// Global flags, they override the environment
	queryPath  string
	replyPath  string
	logLevel   string
	maxPayload int64

	// Shared state set during PersistentPreRun
	conf *env.Config
	log  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "elpida",
	Short: "Solver and problem server talking over a pair of named pipes",
	Long: `Elpida connects a black box optimisation solver to a problem server.

The solver writes queries to the query pipe, the problem server answers each
one with exactly one reply on the reply pipe. Both sides block until the other
end has opened its pipe.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("Failed to load config: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("query") {
			conf.Query = queryPath
		}
		if flags.Changed("reply") {
			conf.Reply = replyPath
		}
		if flags.Changed("log-level") {
			conf.LogLevel = logLevel
		}
		if flags.Changed("max-payload") {
			conf.MaxPayload = maxPayload
		}

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},
}

// Execute runs the root command and exits with the code of its error.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if log != nil {
		log.Sync()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(protocol.ExitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&queryPath, "query", "q", "query", "the query named pipe, solver to problem server")
	flags.StringVarP(&replyPath, "reply", "r", "reply", "the reply named pipe, problem server to solver")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.Int64Var(&maxPayload, "max-payload", 1<<20, "the largest message accepted, in bytes")

	rootCmd.AddCommand(ServeCmd, SolveCmd, SMACCmd, VersionCmd, gen.RootCmd)
}
