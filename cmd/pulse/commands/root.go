package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	gatewayAddr string
	jsonOut     bool
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "pulse - live operations console for agent platforms",
	Long: `pulse is a terminal console showing what a conversational-agent
platform is doing right now: message traffic per channel, background
workers, reasoning branches, and the tools they run.

  pulse watch            Open the live dashboard
  pulse get <resource>   List channels or in-flight work
  pulse config           Manage configuration`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "gateway", "", "gateway address (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute(ver string) error {
	version = ver
	return rootCmd.Execute()
}

var version string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulse %s\n", version)
	},
}
