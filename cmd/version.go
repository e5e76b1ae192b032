package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionInfo() string {
	return fmt.Sprintf("lumen %s (commit %s, built %s, %s)",
		AppVersion, GitCommit, BuildTime, runtime.Version())
}
