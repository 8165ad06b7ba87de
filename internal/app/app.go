package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"switchbot-meter/internal/ble"
	"switchbot-meter/internal/config"
	"switchbot-meter/internal/entity"
	"switchbot-meter/internal/httpapi"
	"switchbot-meter/internal/meter"
	"switchbot-meter/internal/metrics"
	"switchbot-meter/internal/mqtt"
)

const (
	mqttConnectTimeout = 30 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Publisher sends poll results to the broker.
type Publisher interface {
	PublishState(mqtt.State) error
	PublishAvailability(mqtt.Availability) error
}

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("initializing gateway",
		"meter", cfg.MeterMAC,
		"name", cfg.MeterName,
		"scan_interval", cfg.ScanInterval.String(),
		"adapter", cfg.BLEAdapter,
		"mqtt_enabled", cfg.MQTTEnabled,
		"http_addr", cfg.HTTPAddr,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg, cfg.MeterMAC, cfg.MonitoredConditions)

	central := ble.NewCentral(ble.NewAdapter(cfg.BLEAdapter), cfg.BLEConnectTimeout, slog.Default())
	fetcher, err := NewFetcher(cfg, central, recorder)
	if err != nil {
		return err
	}

	var sensors []*entity.Sensor
	entity.Setup(cfg.MeterName, cfg.MonitoredConditions, fetcher, func(s []*entity.Sensor) {
		sensors = append(sensors, s...)
	})

	var publisher Publisher
	if cfg.MQTTEnabled {
		mqttClient, err := mqtt.NewClient(cfg, slog.Default())
		if err != nil {
			return err
		}
		defer mqttClient.Disconnect()

		go func() {
			connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
			defer cancel()
			// paho keeps reconnecting in the background after this returns.
			if err := mqttClient.Connect(connectCtx); err != nil {
				slog.Warn("mqtt connect failed; gateway continues polling", "error", err)
			}
		}()
		publisher = mqttClient
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(sensors, fetcher.LastSuccess, reg))
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	p := &poller{
		name:      cfg.MeterName,
		address:   cfg.MeterMAC,
		sensors:   sensors,
		fetcher:   fetcher,
		publisher: publisher,
		recorder:  recorder,
		logger:    slog.Default(),
	}

	runErr := make(chan error, 1)
	go func() { runErr <- p.run(ctx, cfg.ScanInterval) }()

	select {
	case err = <-srvErr:
	case err = <-runErr:
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("http server shutdown", "error", serr)
	}

	slog.Info("gateway shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// NewFetcher builds the meter fetcher for cfg on top of dialer.
func NewFetcher(cfg config.Config, dialer meter.Dialer, observer meter.Observer) (*meter.Fetcher, error) {
	return meter.NewFetcher(meter.Options{
		Address:  cfg.MeterMAC,
		Interval: cfg.ScanInterval,
		Dialer:   dialer,
		Logger:   slog.Default(),
		Observer: observer,
	})
}
