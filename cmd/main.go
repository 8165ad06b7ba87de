package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"switchbot-meter/internal/app"
	"switchbot-meter/internal/config"
	"switchbot-meter/internal/logging"
)

var version = "dev"
var appName = "switchbot-meter"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "SwitchBot Meter gateway",
	Long: `Polls a SwitchBot Meter over Bluetooth LE for battery, humidity and temperature,
publishes the readings over MQTT and serves them on a small HTTP API.

Configuration is read from the environment (METER_MAC, METER_MONITORED_CONDITIONS, ...)
and optionally from the YAML file named by CONFIG_FILE.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGateway,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway (default)",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd, scanCmd, readCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the process logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	return cfg, nil
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	if err := app.Run(cmd.Context(), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		return err
	}

	slog.Info("shutting down")
	return nil
}
