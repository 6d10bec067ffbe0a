package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loopwork/pulse/internal/api"
	"github.com/loopwork/pulse/internal/config"
	"github.com/loopwork/pulse/internal/livestate"
	"github.com/loopwork/pulse/internal/stream"
	"github.com/loopwork/pulse/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"dashboard", "ui"},
	Short:   "Open the live dashboard",
	Long: `Open the live terminal dashboard.

The dashboard shows, per channel:
  💬 Recent messages (history backfill + live stream)
  🛠  Active workers, their status and tool calls
  🌿 Active reasoning branches

Navigation:
  ↑/↓ j/k   Select channel
  r         Refresh channel list
  q         Quit`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := cfg.Gateway.Address
	if gatewayAddr != "" {
		addr = gatewayAddr
	}

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(addr, cfg.Gateway.Token)
	cache := api.NewChannelCache(client)
	engine := livestate.NewEngine(livestate.Config{
		Gateway:    client,
		Invalidate: cache.Invalidate,
		Logger:     logger,
	})

	sc := stream.New(addr, cfg.Gateway.Token, logger)
	sc.Start(ctx)
	defer sc.Stop()

	// Single writer: every stream event is folded in here, in arrival
	// order.
	go func() {
		for ev := range sc.Events() {
			engine.Dispatch(ev)
		}
	}()

	engine.Bootstrap(ctx)

	m := tui.NewDashboard(ctx, engine, cache)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// openLogger returns a logger that never writes to the terminal the
// dashboard owns: the configured log file when set, discard otherwise.
func openLogger(cfg *config.Config) (*log.Logger, func(), error) {
	if cfg.Logging.File == "" {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "", log.LstdFlags), func() { f.Close() }, nil
}
