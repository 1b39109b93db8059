package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups the generators for elpida's own documentation.
var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate elpida documentation",
	Long:  `Generate documentation for elpida from its command definitions`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
