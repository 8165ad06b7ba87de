package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"switchbot-meter/internal/ble"
	"switchbot-meter/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby BLE devices",
	Long: `Scans for advertising BLE devices and prints each one once, to help find the
address of a meter. Meters advertise with the local name "WoSensorTH".`,
	Args: cobra.NoArgs,
	RunE: scan,
}

func init() {
	scanCmd.Flags().Duration("duration", 10*time.Second, "How long to scan.")
	scanCmd.Flags().String("adapter", envOr("BLE_ADAPTER", "hci0"), "HCI adapter to scan on.")
	scanCmd.Flags().String("name", "", "Only list devices advertising this local name.")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func scan(cmd *cobra.Command, _ []string) error {
	duration, err := cmd.Flags().GetDuration("duration")
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	adapter, _ := cmd.Flags().GetString("adapter")
	name, _ := cmd.Flags().GetString("name")

	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tRSSI\tNAME\tCOMPANY")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	listener := ble.NewListener(ble.NewAdapter(adapter), ble.Filter{LocalName: name})
	err = listener.Run(ctx, func(m ble.Match) {
		mu.Lock()
		defer mu.Unlock()
		if seen[m.Address] {
			return
		}
		seen[m.Address] = true

		company := "-"
		if m.CompanyID != 0 || len(m.Data) > 0 {
			company = "0x" + utils.Hex4(m.CompanyID)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Address, m.RSSI, m.LocalName, company)
	})
	if err != nil {
		return err
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d device(s) found\n", len(seen))
	return nil
}
