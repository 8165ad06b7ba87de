package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// Adapter wraps a BlueZ adapter. Scans and connections share the radio, so Adapter hands
// it out to one operation at a time.
type Adapter struct {
	name    string
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error

	mu sync.Mutex
}

// NewAdapter returns the adapter with the given BlueZ name ("hci0" when empty).
// The adapter is enabled lazily on first use.
func NewAdapter(name string) *Adapter {
	if name == "" {
		name = "hci0"
	}
	return &Adapter{
		name:    name,
		adapter: bluetooth.NewAdapter(name),
	}
}

// Name returns the BlueZ adapter name.
func (a *Adapter) Name() string { return a.name }

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		slog.Info("ble: enabling adapter", "adapter", a.name)
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("ble enable (%s): %w", a.name, err)
			return
		}
		slog.Info("ble: adapter enabled", "adapter", a.name)
	})
	return a.enableErr
}
