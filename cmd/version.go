package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/elpida/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()

		fmt.Fprintf(cmd.OutOrStdout(), "elpida %s (build %s, branch %s)\n", info.Version, info.Build, info.Branch)
		fmt.Fprintf(cmd.OutOrStdout(), "built %s with %s for %s\n", info.BuildTime, info.GoVersion, info.Platform)

		return nil
	},
}
