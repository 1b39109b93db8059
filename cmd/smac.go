package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/elpida/client"
	"github.com/luma/elpida/protocol"
	"github.com/luma/elpida/transport"
)

var (
	smacX float64
	smacY float64
)

func init() {
	flags := SMACCmd.Flags()

	flags.Float64VarP(&smacX, "x", "x", 0, "first coordinate of the configuration")
	flags.Float64VarP(&smacY, "y", "y", 0, "second coordinate of the configuration")
}

// SMACCmd is the target algorithm wrapper SMAC calls once per configuration.
var SMACCmd = &cobra.Command{
	Use:   "smac INSTANCE SPECIFICS CUTOFF RUNLENGTH SEED -x X -y Y",
	Short: "Evaluate one configuration for SMAC",
	Long: `Evaluate one configuration for SMAC

Sends the configuration [x, y] to the problem server and prints the result
line SMAC expects. The exit status is the code of the failure, if any.

Usage
	elpida smac 0 0 10.0 0.0 42 -x 1.5 -y -2 --query query --reply reply

`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateSMACArgs(args); err != nil {
			return reportSMAC(cmd.OutOrStdout(), 0, err)
		}

		for _, name := range []string{"x", "y"} {
			if !cmd.Flags().Changed(name) {
				return reportSMAC(cmd.OutOrStdout(), 0, protocol.NewError(protocol.KindMissingArg, "missing argument -%s", name))
			}
		}

		pair, err := transport.OpenFIFOPair(conf.Query, conf.Reply, transport.Options{
			MaxPayload: conf.MaxPayload,
			Create:     true,
			Log:        log.Named("transport"),
		})
		if err != nil {
			return reportSMAC(cmd.OutOrStdout(), 0, err)
		}

		c := client.New(pair, log.Named("client"))
		quality, err := evaluateSMAC(cmd.Context(), c, smacX, smacY)

		return reportSMAC(cmd.OutOrStdout(), quality, err)
	},
}

// validateSMACArgs checks the positional arguments SMAC always passes:
// instance, instance specifics, cutoff time, run length and seed.
func validateSMACArgs(args []string) error {
	if len(args) != 5 {
		return protocol.NewError(protocol.KindInvalidArgument,
			"expected INSTANCE SPECIFICS CUTOFF RUNLENGTH SEED, got %d arguments", len(args))
	}

	parsers := []struct {
		name  string
		parse func(string) error
	}{
		{"instance", parseInt},
		{"specifics", parseInt},
		{"cutoff", parseFloat},
		{"runlength", parseFloat},
		{"seed", parseInt},
	}

	for i, p := range parsers {
		if err := p.parse(args[i]); err != nil {
			return protocol.WrapError(protocol.KindInvalidArgument, err, "invalid %s %q", p.name, args[i])
		}
	}

	return nil
}

func parseInt(s string) error {
	_, err := strconv.Atoi(s)
	return err
}

func parseFloat(s string) error {
	_, err := strconv.ParseFloat(s, 64)
	return err
}

// evaluateSMAC sends [x, y] and insists on a value reply, anything else is
// an error.
func evaluateSMAC(ctx context.Context, c *client.Client, x, y float64) (float64, error) {
	reply, err := c.Query(ctx, &protocol.CallQuery{Solution: []float64{x, y}})
	if err != nil {
		return 0, err
	}

	switch r := reply.(type) {
	case *protocol.ValueReply:
		return r.First()

	case *protocol.ErrorReply:
		return 0, r.Err()

	default:
		return 0, protocol.NewError(protocol.KindPayloadTypeError,
			"unexpected %s reply to a call query", reply.GetReplyType())
	}
}

// reportSMAC prints the result line and hands err back as the exit status.
func reportSMAC(out io.Writer, quality float64, err error) error {
	if err != nil {
		log.Error("Evaluation aborted", zap.Error(err), zap.Int("code", protocol.ExitCode(err)))
		fmt.Fprintln(out, "Result for SMAC: ABORT")
		return err
	}

	fmt.Fprintf(out, "Result for SMAC: SUCCESS, -1, -1, %s, -1\n", strconv.FormatFloat(quality, 'g', -1, 64))
	return nil
}
