package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"switchbot-meter/internal/utils"
)

// GATT characteristics of the meter. Commands are written to the command channel and the
// answer is read back from the response channel.
const (
	CommandChannelUUID  = "cba20002-224d-11e6-9fb8-0002a5d5c51b"
	ResponseChannelUUID = "cba20003-224d-11e6-9fb8-0002a5d5c51b"
)

// DefaultInterval is the minimum time between two device transactions.
const DefaultInterval = 300 * time.Second

var (
	cmdReadDeviceInfo = []byte{0x57, 0x02}
	cmdReadSensorData = []byte{0x57, 0x0F, 0x31}
)

// Dialer opens a connection to a peripheral by hardware address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Peripheral, error)
}

// Peripheral is a connected BLE device.
type Peripheral interface {
	// Characteristic resolves a characteristic by UUID. Implementations wrap
	// ErrCharacteristicNotFound when the device does not expose it.
	Characteristic(uuid string) (Characteristic, error)
	Disconnect() error
}

// Characteristic is a GATT characteristic.
type Characteristic interface {
	// Write sends p and waits for the peripheral to acknowledge it.
	Write(p []byte) error
	Read() ([]byte, error)
}

// Observer is notified about the outcome of every Refresh.
type Observer interface {
	RefreshThrottled()
	RefreshSucceeded(r Reading, at time.Time, took time.Duration)
	RefreshFailed(err error, took time.Duration)
}

type Options struct {
	Address  string
	Interval time.Duration
	Dialer   Dialer
	Logger   *slog.Logger
	Observer Observer
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Fetcher polls one meter and caches the last successful reading behind a throttle.
//
// The cache is replaced as a whole: it either holds nothing or every value of the most recent
// successful transaction. A failed transaction leaves both the cache and the throttle timestamp
// untouched, so the next Refresh tries the device again right away.
type Fetcher struct {
	address  string
	interval time.Duration
	dialer   Dialer
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	// refreshMu serialises throttle check, transaction and cache update.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	cache       map[MetricKind]float64
	reading     Reading
	lastSuccess time.Time
}

func NewFetcher(opts Options) (*Fetcher, error) {
	if opts.Address == "" {
		return nil, errors.New("meter: address is required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("meter: dialer is required")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("meter: interval must not be negative, got %v", opts.Interval)
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		address:  opts.Address,
		interval: opts.Interval,
		dialer:   opts.Dialer,
		logger:   opts.Logger.With("addr", opts.Address),
		observer: opts.Observer,
		now:      opts.Now,
		cache:    make(map[MetricKind]float64),
	}, nil
}

// Address returns the hardware address of the meter.
func (f *Fetcher) Address() string { return f.address }

// Interval returns the throttle interval.
func (f *Fetcher) Interval() time.Duration { return f.interval }

// Refresh runs a device transaction unless the last successful one is younger than the
// interval. It blocks for the duration of the transaction.
func (f *Fetcher) Refresh(ctx context.Context) error {
	return f.refresh(ctx, false)
}

// ForceRefresh runs a device transaction regardless of the throttle.
func (f *Fetcher) ForceRefresh(ctx context.Context) error {
	return f.refresh(ctx, true)
}

func (f *Fetcher) refresh(ctx context.Context, force bool) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	if !force && f.throttled() {
		f.logger.Debug("meter: refresh throttled", "last_success", f.LastSuccess())
		if f.observer != nil {
			f.observer.RefreshThrottled()
		}
		return nil
	}

	start := f.now()
	r, err := f.transact(ctx)
	took := f.now().Sub(start)
	if err != nil {
		f.logger.Warn("meter: refresh failed", "error", err, "duration_ms", took.Milliseconds())
		if f.observer != nil {
			f.observer.RefreshFailed(err, took)
		}
		return err
	}

	// The throttle counts from the start of the transaction so a poller ticking at the
	// same interval is never throttled by the time the transaction itself took.
	at := start
	f.store(r, at)
	f.logger.Info("meter: reading updated",
		"battery", r.Battery,
		"humidity", r.Humidity,
		"temperature", r.Temperature,
		"duration_ms", took.Milliseconds(),
	)
	if f.observer != nil {
		f.observer.RefreshSucceeded(r, at, took)
	}
	return nil
}

func (f *Fetcher) throttled() bool {
	f.mu.RLock()
	last := f.lastSuccess
	f.mu.RUnlock()
	if last.IsZero() {
		return false
	}
	return f.now().Sub(last) < f.interval
}

func (f *Fetcher) store(r Reading, at time.Time) {
	next := make(map[MetricKind]float64, len(AllMetrics))
	for _, k := range AllMetrics {
		next[k] = r.Value(k)
	}

	f.mu.Lock()
	f.cache = next
	f.reading = r
	f.lastSuccess = at
	f.mu.Unlock()
}

func (f *Fetcher) transact(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, &ConnectionError{Op: "dial", Address: f.address, Err: err}
	}

	p, err := f.dialer.Dial(ctx, f.address)
	if err != nil {
		return Reading{}, &ConnectionError{Op: "dial", Address: f.address, Err: err}
	}
	defer f.disconnect(p)

	cmd, err := p.Characteristic(CommandChannelUUID)
	if err != nil {
		return Reading{}, &ConnectionError{Op: "discover", Address: f.address, Err: err}
	}
	resp, err := p.Characteristic(ResponseChannelUUID)
	if err != nil {
		return Reading{}, &ConnectionError{Op: "discover", Address: f.address, Err: err}
	}

	devInfo, err := f.exchange(cmd, resp, cmdReadDeviceInfo)
	if err != nil {
		return Reading{}, err
	}
	sensorData, err := f.exchange(cmd, resp, cmdReadSensorData)
	if err != nil {
		return Reading{}, err
	}

	return DecodeReading(devInfo, sensorData)
}

func (f *Fetcher) exchange(cmd, resp Characteristic, command []byte) ([]byte, error) {
	if err := cmd.Write(command); err != nil {
		return nil, &ConnectionError{Op: "write", Address: f.address, Err: err}
	}
	data, err := resp.Read()
	if err != nil {
		return nil, &ConnectionError{Op: "read", Address: f.address, Err: err}
	}
	f.logger.Debug("meter: response",
		"command", utils.BytesToHex(command),
		"data", utils.BytesToHex(data),
	)
	return data, nil
}

// disconnect tries twice, then gives up and logs.
func (f *Fetcher) disconnect(p Peripheral) {
	err := p.Disconnect()
	if err != nil {
		f.logger.Debug("meter: disconnect failed, retrying", "error", err)
		err = p.Disconnect()
	}
	if err != nil {
		f.logger.Warn("meter: abandoning connection", "error", &DisconnectError{Address: f.address, Err: err})
	}
}

// Get returns the cached value of k, or false when no refresh has succeeded yet.
func (f *Fetcher) Get(k MetricKind) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.cache[k]
	return v, ok
}

// Snapshot returns the cached reading and when it was taken.
func (f *Fetcher) Snapshot() (Reading, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastSuccess.IsZero() {
		return Reading{}, time.Time{}, false
	}
	return f.reading, f.lastSuccess, true
}

// LastSuccess returns the time of the last successful refresh, zero if none.
func (f *Fetcher) LastSuccess() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastSuccess
}
