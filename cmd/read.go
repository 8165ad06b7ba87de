package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"switchbot-meter/internal/app"
	"switchbot-meter/internal/ble"
	"switchbot-meter/internal/meter"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read the meter once and print the values",
	Long:  `Connects to the configured meter right away, ignoring the throttle, and prints every reading.`,
	Args:  cobra.NoArgs,
	RunE:  read,
}

func read(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	central := ble.NewCentral(ble.NewAdapter(cfg.BLEAdapter), cfg.BLEConnectTimeout, slog.Default())
	fetcher, err := app.NewFetcher(cfg, central, nil)
	if err != nil {
		return err
	}

	if err := fetcher.ForceRefresh(cmd.Context()); err != nil {
		return fmt.Errorf("read %s: %w", cfg.MeterMAC, err)
	}

	reading, at, _ := fetcher.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s) at %s\n", cfg.MeterName, cfg.MeterMAC, at.Format("2006-01-02 15:04:05"))
	for _, k := range meter.AllMetrics {
		fmt.Fprintf(out, "  %-12s %g %s\n", k.Label(), reading.Value(k), k.Unit())
	}
	return nil
}
