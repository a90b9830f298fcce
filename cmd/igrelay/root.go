package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igrelay/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool

	console = ui.NewConsole()
)

var rootCmd = &cobra.Command{
	Use:   "igrelay",
	Short: "Relay Instagram stories, highlights and profile data to Telegram chats",
	Long: `igrelay is a Telegram bot that fetches Instagram content on request.

Send the bot a profile link and pick a feature:
  - Profile picture in full resolution
  - Current stories
  - Highlights, browsable page by page
  - Profile information
  - Follower and following change tracking

The bot calls Instagram with the cookies of a logged-in session. Store them
once with 'igrelay auth login', then start the bot with 'igrelay run'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			console.SetColor(false)
		}
		console.SetQuiet(quiet)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		console.Error("Error", err)
		os.Exit(1)
	}
}

// flagMap collects the flags config.MergeCommandLineFlags understands
func flagMap() map[string]interface{} {
	flags := map[string]interface{}{}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igrelay.yaml or ~/.config/igrelay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`igrelay {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
