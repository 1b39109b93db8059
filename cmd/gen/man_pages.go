package gen

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/elpida/internal/meta"
)

var manDir string

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for elpida",
	Long: `Generates one man page per elpida command, in section 1. The pages
are written to the "man" directory under the current directory unless --dir
says otherwise.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Root().DisableAutoGenTag = true
		return GenManPages(cmd.Root(), manDir, cmd.OutOrStdout())
	},
}

// GenManPages writes the man pages of root and all its subcommands to dir,
// creating it when needed.
func GenManPages(root *cobra.Command, dir string, out io.Writer) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("Failed to create %s: %w", dir, err)
	}

	header := &doc.GenManHeader{
		Section: "1",
		Manual:  "Elpida Manual",
		Source:  fmt.Sprintf("elpida %s", meta.Version),
	}

	fmt.Fprintln(out, "Generating elpida man pages in", dir)

	if err := doc.GenManTree(root, header, dir); err != nil {
		return err
	}

	fmt.Fprintln(out, "Done.")
	return nil
}

func init() {
	flags := ManPagesCmd.PersistentFlags()

	flags.StringVar(&manDir, "dir", "man", "the directory to write the man pages to")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
