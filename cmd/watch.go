package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/monitoring/console"
)

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch URL",
		Short: "Show a running simulation in the terminal.",
		Long: `Watch polls the monitoring server of a running simulation, ` +
			`started with run --monitor, and shows the counters and the ` +
			`frames of a region. Press q to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: watch,
	}

	f := watchCmd.Flags()
	f.String("region", config.DefaultRegionKey, "The key of the region to show.")
	f.Duration("interval", 500*time.Millisecond, "The refresh interval.")

	return watchCmd
}

func watch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	key, _ := cmd.Flags().GetString("region")
	interval, _ := cmd.Flags().GetDuration("interval")

	if interval <= 0 {
		return fmt.Errorf("invalid refresh interval %s", interval)
	}

	client := console.NewClient(args[0])

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Snapshot(checkCtx, key); err != nil {
		return err
	}

	return console.Watch(ctx, client, key, interval)
}
