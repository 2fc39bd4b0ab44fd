package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show hashserver version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, commit, date := buildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "hashserver %s (commit %s, built %s, %s %s/%s)\n",
			color.CyanString(version),
			color.GreenString(commit),
			date,
			runtime.Version(), runtime.GOOS, runtime.GOARCH,
		)
		return nil
	},
}

// buildInfo fills in whatever ldflags left at their defaults from the
// module build info.
func buildInfo() (version, commit, date string) {
	version, commit, date = Version, Commit, BuildDate

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit, date
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "none" {
				commit = setting.Value
			}
		case "vcs.time":
			if date == "unknown" {
				date = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" {
				commit += "-dirty"
			}
		}
	}
	return version, commit, date
}
