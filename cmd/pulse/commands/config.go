package commands

import (
	"fmt"

	"github.com/loopwork/pulse/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("gateway.address: %s\n", cfg.Gateway.Address)
		token := "(not set)"
		if cfg.Gateway.Token != "" {
			token = "(set)"
		}
		fmt.Printf("gateway.token:   %s\n", token)
		fmt.Printf("logging.level:   %s\n", cfg.Logging.Level)
		if cfg.Logging.File != "" {
			fmt.Printf("logging.file:    %s\n", cfg.Logging.File)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.ConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.EnsureDirs(); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", config.ConfigPath())
		return nil
	},
}
