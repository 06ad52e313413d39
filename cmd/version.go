package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		format string
		short  bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  weft version
  weft version --short
  weft version -f json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case format == "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetBuildInfo())
			case short:
				_, err := fmt.Fprintln(out, version.GetShortVersion())
				return err
			default:
				_, err := fmt.Fprintln(out, version.GetDetailedVersion())
				return err
			}
		},
	}
	addFormatFlag(cmd, &format, "text", "json")
	cmd.Flags().BoolVar(&short, "short", false, "Show the version number only")

	return cmd
}
