package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		console.Info("Version", version)
		console.Info("Commit", gitCommit)
		console.Info("Built", buildDate)
		console.Info("Go", runtime.Version())
		console.Info("OS/Arch", runtime.GOOS+"/"+runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
