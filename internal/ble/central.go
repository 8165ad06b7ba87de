package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"

	"switchbot-meter/internal/meter"
)

// maxValueLen is the largest attribute value BLE allows.
const maxValueLen = 512

// Central connects to peripherals on an Adapter. It implements meter.Dialer.
type Central struct {
	adapter        *Adapter
	connectTimeout time.Duration
	logger         *slog.Logger
}

func NewCentral(adapter *Adapter, connectTimeout time.Duration, logger *slog.Logger) *Central {
	if logger == nil {
		logger = slog.Default()
	}
	return &Central{
		adapter:        adapter,
		connectTimeout: connectTimeout,
		logger:         logger,
	}
}

// Dial scans until address is advertising, connects and discovers its characteristics.
// BlueZ only connects to devices it has seen, hence the scan. Scan and connect together
// are bounded by the connect timeout.
func (c *Central) Dial(ctx context.Context, address string) (meter.Peripheral, error) {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}

	if err := c.adapter.enable(); err != nil {
		return nil, err
	}

	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	c.adapter.mu.Lock()
	defer c.adapter.mu.Unlock()

	addr, err := c.locate(ctx, mac)
	if err != nil {
		return nil, err
	}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	start := time.Now()
	dev, err := c.adapter.adapter.Connect(addr, params)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.logger.Debug("ble: connected", "addr", address, "duration_ms", time.Since(start).Milliseconds())

	chars, err := discover(dev)
	if err != nil {
		if derr := dev.Disconnect(); derr != nil {
			c.logger.Warn("ble: disconnect after failed discovery", "addr", address, "error", derr)
		}
		return nil, err
	}

	return &peripheral{address: address, dev: dev, chars: chars}, nil
}

func (c *Central) locate(ctx context.Context, mac bluetooth.MAC) (bluetooth.Address, error) {
	var (
		found bluetooth.Address
		seen  bool
	)
	err := scan(ctx, c.adapter.adapter, func(r bluetooth.ScanResult) bool {
		if r.Address.MAC != mac {
			return false
		}
		found = r.Address
		seen = true
		c.logger.Debug("ble: peripheral located", "addr", r.Address.String(), "rssi", r.RSSI)
		return true
	})
	if err != nil {
		return bluetooth.Address{}, err
	}
	if !seen {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return bluetooth.Address{}, fmt.Errorf("peripheral %s not found: %w", mac.String(), ctxErr)
		}
		return bluetooth.Address{}, fmt.Errorf("peripheral %s not found", mac.String())
	}
	return found, nil
}

func discover(dev bluetooth.Device) (map[string]bluetooth.DeviceCharacteristic, error) {
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	chars := make(map[string]bluetooth.DeviceCharacteristic)
	for _, svc := range services {
		cs, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		for _, ch := range cs {
			chars[strings.ToLower(ch.UUID().String())] = ch
		}
	}
	return chars, nil
}

type peripheral struct {
	address string
	dev     bluetooth.Device
	chars   map[string]bluetooth.DeviceCharacteristic
}

func (p *peripheral) Characteristic(uuid string) (meter.Characteristic, error) {
	ch, ok := p.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, fmt.Errorf("%s on %s: %w", uuid, p.address, meter.ErrCharacteristicNotFound)
	}
	return characteristic{ch: ch}, nil
}

func (p *peripheral) Disconnect() error {
	return p.dev.Disconnect()
}

// gattValue is the part of bluetooth.DeviceCharacteristic a characteristic needs.
type gattValue interface {
	WriteWithoutResponse(p []byte) (int, error)
	Read(data []byte) (int, error)
}

type characteristic struct {
	ch gattValue
}

// Write sends p in one GATT write. On BlueZ WriteWithoutResponse issues WriteValue without a
// "type" option, and BlueZ then picks an acknowledged write request whenever the
// characteristic supports one, as the meter's command channel does. The call returns once
// the peripheral has answered.
func (c characteristic) Write(p []byte) error {
	n, err := c.ch.WriteWithoutResponse(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

// Read returns a copy of the value, at most maxValueLen bytes.
func (c characteristic) Read() ([]byte, error) {
	buf := make([]byte, maxValueLen)
	n, err := c.ch.Read(buf)
	if err != nil {
		return nil, err
	}
	if n > len(buf) {
		n = len(buf)
	}
	return buf[:n:n], nil
}
