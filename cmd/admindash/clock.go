package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/leanbalancer/admindash/internal/clock"
	"github.com/leanbalancer/admindash/internal/liveclock"
)

var clockCount int

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Print the live clock, one line per tick",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		src := liveclock.NewSource(clock.Real(), cfg.ClockInterval())
		sub := src.Subscribe()
		defer sub.Unsubscribe()

		for n := 0; clockCount <= 0 || n < clockCount; n++ {
			select {
			case <-ctx.Done():
				return nil
			case t := <-sub.C:
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.TimeOnly))
			}
		}
		return nil
	},
}

func init() {
	clockCmd.Flags().IntVarP(&clockCount, "count", "n", 0, "Stop after this many ticks (0 runs until interrupted)")
}
