package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/loopwork/pulse/internal/api"
	"github.com/loopwork/pulse/internal/config"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:     "get <resource>",
	Aliases: []string{"list", "ls"},
	Short:   "List resources",
	Long: `List resources of a given type.

Resources:
  channels, ch     Channels known to the gateway
  workers, w       In-flight background workers
  branches, b      In-flight reasoning branches

Examples:
  pulse get channels
  pulse get workers --json`,
}

func init() {
	getCmd.AddCommand(getChannelsCmd)
	getCmd.AddCommand(getWorkersCmd)
	getCmd.AddCommand(getBranchesCmd)
}

func gatewayClient() (*api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	addr := cfg.Gateway.Address
	if gatewayAddr != "" {
		addr = gatewayAddr
	}
	return api.NewClient(addr, cfg.Gateway.Token), nil
}

var getChannelsCmd = &cobra.Command{
	Use:     "channels",
	Aliases: []string{"ch", "channel"},
	Short:   "List channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := gatewayClient()
		if err != nil {
			return err
		}
		channels, err := client.Channels(context.Background())
		if err != nil {
			return err
		}

		if len(channels) == 0 {
			fmt.Println("No channels.")
			return nil
		}

		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(channels)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tNAME\tLAST ACTIVITY")
		for _, ch := range channels {
			last := "-"
			if ch.LastActivity > 0 {
				last = time.UnixMilli(ch.LastActivity).Format("Jan 02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ch.ID, ch.Platform, ch.DisplayName(), last)
		}
		return w.Flush()
	},
}

var getWorkersCmd = &cobra.Command{
	Use:     "workers",
	Aliases: []string{"w", "worker"},
	Short:   "List in-flight workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := gatewayClient()
		if err != nil {
			return err
		}
		snap, err := client.ActiveSnapshot(context.Background())
		if err != nil {
			return err
		}

		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(snap)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHANNEL\tTASK\tSTATUS\tTOOL CALLS\tAGE")
		n := 0
		for channelID, cs := range snap {
			for _, wk := range cs.Workers {
				age := time.Since(wk.StartedAt).Round(time.Second)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					wk.ID, channelID, wk.Task, wk.Status, wk.ToolCalls, age)
				n++
			}
		}
		if n == 0 {
			fmt.Println("No workers in flight.")
			return nil
		}
		return w.Flush()
	},
}

var getBranchesCmd = &cobra.Command{
	Use:     "branches",
	Aliases: []string{"b", "branch"},
	Short:   "List in-flight reasoning branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := gatewayClient()
		if err != nil {
			return err
		}
		snap, err := client.ActiveSnapshot(context.Background())
		if err != nil {
			return err
		}

		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(snap)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHANNEL\tDESCRIPTION\tAGE")
		n := 0
		for channelID, cs := range snap {
			for _, b := range cs.Branches {
				age := time.Since(b.StartedAt).Round(time.Second)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, channelID, b.Description, age)
				n++
			}
		}
		if n == 0 {
			fmt.Println("No branches in flight.")
			return nil
		}
		return w.Flush()
	},
}
