package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/elpida/internal/env"
	"github.com/luma/elpida/problem"
	"github.com/luma/elpida/server"
	"github.com/luma/elpida/storage"
	"github.com/luma/elpida/transport"
)

var (
	// Create the named pipes when they are missing
	mkfifo bool

	// TOML description of the problem
	problemPath string

	// Where to write the evaluation history on exit
	historyPath string

	// The address to serve the debug endpoints on, disabled when empty
	debugAddr string

	serveDimension int
)

func init() {
	flags := ServeCmd.Flags()

	flags.BoolVar(&mkfifo, "mkfifo", false, "create the named pipes if they do not exist")
	flags.StringVarP(&problemPath, "problem", "p", "", "the problem file (TOML)")
	flags.StringVar(&historyPath, "history", "", "write the evaluation history to this file on exit")
	flags.StringVar(&debugAddr, "debug-addr", "", "serve /ping, /stats and /history on this address")
	flags.IntVarP(&serveDimension, "dimension", "d", 0, "the expected solution dimension, 0 accepts any")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a problem server",
	Long: `Run a problem server

Answers call, new_run and stop queries until a stop query arrives or an
unreadable query ends the loop. The exit status is the code of the error
that ended it, 0 after a stop.

Usage
	elpida serve --query query --reply reply --mkfifo

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		desc := env.DefaultProblemFile()
		if problemPath != "" {
			if desc, err = env.LoadProblemFile(problemPath); err != nil {
				return err
			}
		}

		if cmd.Flags().Changed("dimension") {
			desc.Dimension = serveDimension
		}
		if historyPath != "" {
			desc.History = historyPath
		}

		evaluator, err := problem.New(desc.Name, desc.Dimension)
		if err != nil {
			return err
		}

		pair, err := transport.OpenFIFOPair(conf.Query, conf.Reply, transport.Options{
			MaxPayload: conf.MaxPayload,
			Create:     mkfifo,
			Log:        log.Named("transport"),
		})
		if err != nil {
			return err
		}

		history := storage.NewInmemoryStore()
		defer history.Close()

		if err := restoreHistory(history, desc.History); err != nil {
			return err
		}

		// Returns once the history is closed
		go logImprovements(history.ListenToUpdates(), log.Named("history"))

		srv := server.New(server.Options{
			Pair:      pair,
			Evaluator: evaluator,
			History:   history,
			Log:       log.Named("server"),
		})

		srv.Use(server.LoggingMiddleware(log.Named("query")))
		if desc.RateLimit > 0 {
			srv.Use(server.RateLimitMiddleware(desc.RateLimit, desc.Burst))
		}

		if debugAddr != "" {
			debug := server.NewDebugServer(srv, conf.DebugHTTP, log.Named("http"))
			if _, err := debug.Listen(debugAddr); err != nil {
				return err
			}

			defer func() {
				if serr := debug.Shutdown(5 * time.Second); serr != nil {
					log.Error("Debug http server forced to shutdown", zap.Error(serr))
				}
			}()
		}

		log.Info("Serving",
			zap.String("problem", desc.Name),
			zap.Int("dimension", desc.Dimension),
			zap.String("query", conf.Query),
			zap.String("reply", conf.Reply))

		err = srv.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			// Restore default behavior on the interrupt signal
			signalStop()
			log.Info("Interrupted, shutting down")
			err = nil
		}

		if desc.History != "" {
			err = multierr.Append(err, backupHistory(history, desc.History))
		}

		log.Info("Exiting", zap.Any("stats", srv.Stats()))
		return err
	},
}

// restoreHistory picks up where a previous server left off.
func restoreHistory(history storage.Store, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	return history.Restore(data)
}

// logImprovements logs every evaluation that beats the best one seen so far,
// until updates is closed.
func logImprovements(updates <-chan *storage.Update, log *zap.Logger) {
	var (
		best  float64
		found bool
	)

	for update := range updates {
		eval := update.Evaluation
		if found && eval.Value >= best {
			continue
		}

		best, found = eval.Value, true
		log.Info("New best evaluation",
			zap.Int("run", update.Run),
			zap.Float64s("solution", eval.Solution),
			zap.Float64("value", eval.Value))
	}
}

func backupHistory(history storage.Store, path string) error {
	data, err := history.Backup()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
