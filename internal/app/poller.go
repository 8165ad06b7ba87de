package app

import (
	"context"
	"log/slog"
	"time"

	"switchbot-meter/internal/entity"
	"switchbot-meter/internal/meter"
	"switchbot-meter/internal/mqtt"
)

type pollRecorder interface {
	PollError()
	Published(err error)
}

type poller struct {
	name    string
	address string
	sensors []*entity.Sensor
	fetcher *meter.Fetcher

	// publisher and recorder are optional.
	publisher Publisher
	recorder  pollRecorder
	logger    *slog.Logger
}

// run polls once right away and then on every tick until ctx is done.
func (p *poller) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll makes one device transaction per tick and then updates the entities, which share the
// fetcher and so only pick up the fresh reading. The tick is the schedule: the fetcher's
// throttle would otherwise skip any tick that arrives a little early. A failed transaction is
// logged and counted once and the entities keep their last values.
func (p *poller) poll(ctx context.Context) {
	healthy := true
	if err := p.fetcher.ForceRefresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		healthy = false
		p.logger.Warn("meter refresh failed", "addr", p.address, "error", err)
		if p.recorder != nil {
			p.recorder.PollError()
		}
	} else {
		for _, s := range p.sensors {
			if err := s.Update(ctx); err != nil {
				healthy = false
				p.logger.Warn("entity update failed", "entity", s.Name(), "error", err)
				if p.recorder != nil {
					p.recorder.PollError()
				}
			}
		}
	}

	for _, s := range p.sensors {
		if v, ok := s.State(); ok {
			p.logger.Debug("entity state", "entity", s.Name(), "value", v, "unit", s.Unit())
		}
	}

	p.publish(healthy)
}

func (p *poller) publish(healthy bool) {
	if p.publisher == nil {
		return
	}

	_, lastSeen, ok := p.fetcher.Snapshot()
	if ok {
		err := p.publisher.PublishState(p.state(lastSeen))
		if err != nil {
			p.logger.Warn("mqtt state publish failed", "error", err)
		}
		if p.recorder != nil {
			p.recorder.Published(err)
		}
	}

	avail := mqtt.Availability{
		Meter:    p.address,
		LastSeen: lastSeen,
		Healthy:  healthy && ok,
	}
	if err := p.publisher.PublishAvailability(avail); err != nil {
		p.logger.Warn("mqtt availability publish failed", "error", err)
	}
}

// state holds the known values of the monitored metrics.
func (p *poller) state(at time.Time) mqtt.State {
	st := mqtt.State{
		Meter:     p.address,
		Name:      p.name,
		Timestamp: at,
	}
	for _, s := range p.sensors {
		v, ok := s.State()
		if !ok {
			continue
		}
		switch s.Kind() {
		case meter.Battery:
			st.Battery = &v
		case meter.Humidity:
			st.Humidity = &v
		case meter.Temperature:
			st.Temperature = &v
		}
	}
	return st
}
