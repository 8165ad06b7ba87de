// Package entity exposes meter readings as named sensor entities, one per monitored metric.
package entity

import (
	"context"

	"switchbot-meter/internal/meter"
)

// Source is the shared reading source behind a meter's entities.
type Source interface {
	Refresh(ctx context.Context) error
	Get(k meter.MetricKind) (float64, bool)
}

// Sensor is one metric of one meter.
type Sensor struct {
	name   string
	kind   meter.MetricKind
	source Source
}

func NewSensor(name string, kind meter.MetricKind, source Source) *Sensor {
	return &Sensor{
		name:   name + " " + kind.Label(),
		kind:   kind,
		source: source,
	}
}

// Name is the display name, e.g. "Living Room Temperature".
func (s *Sensor) Name() string { return s.name }

func (s *Sensor) Kind() meter.MetricKind { return s.kind }

// State returns the last known value, false while nothing has been read yet.
func (s *Sensor) State() (float64, bool) { return s.source.Get(s.kind) }

func (s *Sensor) Unit() string { return s.kind.Unit() }

// Update asks the source for fresh data. Sensors of the same meter share a source, so
// after the first update in a cycle the rest hit the throttle.
func (s *Sensor) Update(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Setup builds one sensor per monitored metric, in the given order, and hands them to add.
func Setup(name string, monitored []meter.MetricKind, source Source, add func([]*Sensor)) {
	sensors := make([]*Sensor, 0, len(monitored))
	for _, k := range monitored {
		sensors = append(sensors, NewSensor(name, k, source))
	}
	add(sensors)
}
