package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/contactform/internal/version"
	"github.com/spf13/cobra"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  contactform version
  contactform version --format json`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", formatText, "Output format (text, json)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionFormat != formatText && versionFormat != formatJSON {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}

	info := version.GetBuildInfo()
	return writeOutput(cmd.OutOrStdout(), versionFormat, info, func(w io.Writer) error {
		fmt.Fprintf(w, "contactform %s", version.GetShortVersion())
		if info.Dirty {
			fmt.Fprint(w, " (dirty)")
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Go:       %s\n", info.GoVersion)
		fmt.Fprintf(w, "  Platform: %s\n", info.Platform)
		if !info.BuildTime.IsZero() {
			fmt.Fprintf(w, "  Built:    %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
		}
		return nil
	})
}
