package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/finpal/internal/model"
)

var configForce bool

// configCmd inspects and writes the config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Writes the configuration currently in effect (defaults, file values,
FINPAL_* environment overrides and --server) to the config file.

Edits to the flags section are picked up by a running dashboard.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(configPath)
	},
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", configPath)
	return nil
}
