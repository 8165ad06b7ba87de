package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"
)

// Match is a single advertisement that passed the filter.
type Match struct {
	Address   string
	RSSI      int16
	LocalName string
	CompanyID uint16
	Data      []byte
	SeenAt    time.Time
}

// Filter narrows a scan down. Empty fields match everything.
type Filter struct {
	Address   string
	LocalName string
}

func (f Filter) matches(m Match) bool {
	if f.Address != "" && !strings.EqualFold(f.Address, m.Address) {
		return false
	}
	if f.LocalName != "" && m.LocalName != f.LocalName {
		return false
	}
	return true
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapter *Adapter
	filter  Filter
}

func NewListener(adapter *Adapter, filter Filter) *Listener {
	return &Listener{adapter: adapter, filter: filter}
}

// Run scans until ctx is done and calls onMatch for every matching advertisement.
func (l *Listener) Run(ctx context.Context, onMatch func(Match)) error {
	if err := l.adapter.enable(); err != nil {
		return err
	}

	l.adapter.mu.Lock()
	defer l.adapter.mu.Unlock()

	slog.Info("ble: scanning started",
		"adapter", l.adapter.name,
		"filter_addr", l.filter.Address,
		"filter_name", l.filter.LocalName,
	)

	err := scan(ctx, l.adapter.adapter, func(r bluetooth.ScanResult) bool {
		m := Match{
			Address:   r.Address.String(),
			RSSI:      r.RSSI,
			LocalName: r.LocalName(),
			SeenAt:    time.Now(),
		}
		if mfg := r.ManufacturerData(); len(mfg) > 0 {
			m.CompanyID = mfg[0].CompanyID
			m.Data = append([]byte(nil), mfg[0].Data...)
		}
		if !l.filter.matches(m) {
			return false
		}
		if onMatch != nil {
			onMatch(m)
		}
		return false
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		slog.Info("ble: scanning stopped (context done)")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("ble: scanning stopped")
	return nil
}

// scan runs adapter.Scan until onResult returns true or ctx is done.
func scan(ctx context.Context, adapter *bluetooth.Adapter, onResult func(bluetooth.ScanResult) bool) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = adapter.StopScan()
		case <-done:
		}
	}()

	// adapter.Scan blocks until StopScan() or error.
	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if onResult(r) {
			_ = a.StopScan()
		}
	})
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}
	return nil
}
