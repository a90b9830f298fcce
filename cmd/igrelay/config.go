package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igrelay/pkg/config"
)

const configHeader = `# igrelay configuration
#
# Every value can be overridden by environment variables (IGRELAY_*, plus
# TOKEN_BOT and INSTAGRAM_* for existing deployments) and by command line
# flags. Prefer 'igrelay auth login' over putting cookies in this file.

`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igrelay configuration.

Configuration is resolved from, highest priority first:
  - command line flags
  - environment variables (and .env files)
  - the configuration file
  - defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = ".igrelay.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s", path)
		}

		data, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		console.Success("Configuration written to " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := cfg.LoadFromFile(configFile); err != nil {
			return err
		}
		if err := cfg.LoadFromEnv(); err != nil {
			return err
		}
		cfg.MergeCommandLineFlags(flagMap())

		cfg.Telegram.Token = mask(cfg.Telegram.Token)
		cfg.Instagram.SessionID = mask(cfg.Instagram.SessionID)
		cfg.Instagram.CSRFToken = mask(cfg.Instagram.CSRFToken)
		cfg.Instagram.RUR = mask(cfg.Instagram.RUR)
		cfg.Instagram.MID = mask(cfg.Instagram.MID)

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(console.Out(), string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, flagMap())
		if err != nil {
			return err
		}
		if err := cfg.ValidateSession(); err != nil {
			console.Warning("No session in config or environment; 'igrelay run' will use stored credentials")
		}
		console.Success("Configuration is valid")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "List the configuration file locations searched",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		found := false
		for _, loc := range config.ConfigLocations() {
			if _, err := os.Stat(loc); err == nil && !found {
				found = true
				console.Info("using", loc)
				continue
			}
			console.Dim("  " + loc)
		}
		if !found {
			console.Warning("No configuration file found, using defaults")
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd, configPathCmd)
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "********"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
