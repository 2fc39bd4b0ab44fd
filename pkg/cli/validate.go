package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/getmockd/hashserver/pkg/config"
	"github.com/getmockd/hashserver/pkg/hashserver"
	"github.com/getmockd/hashserver/pkg/page"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file-or-glob>...",
	Short: "Check page files without serving them",
	Long: `Load and merge page files, then build the page table exactly as serve
would. Reports syntax errors, unknown fields, duplicate paths, bad headers,
unknown charsets and invalid status codes.`,
	Example: `  hashserver validate pages.yaml
  hashserver validate 'testdata/**/*.yaml'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args)
	},
}

func runValidate(out io.Writer, patterns []string) error {
	file, err := config.LoadGlob(patterns...)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", color.RedString("invalid:"), err)
		return err
	}

	port, host := file.Port, file.Host
	if host == "" {
		host = hashserver.DefaultHost
	}
	pages, err := file.Pages(host, port)
	if err == nil {
		_, err = page.NewTable(pages)
	}
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", color.RedString("invalid:"), err)
		return err
	}

	for _, path := range file.Paths() {
		p := pages[path].(page.Page)
		fmt.Fprintf(out, "  %-9s %s %s\n", p.Kind(), path, color.HiBlackString("(%s)", file.Sources[path]))
	}
	fmt.Fprintf(out, "%s %d pages\n", color.GreenString("ok:"), len(pages))
	return nil
}
