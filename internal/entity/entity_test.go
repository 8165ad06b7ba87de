package entity

import (
	"context"
	"errors"
	"testing"

	"switchbot-meter/internal/meter"
)

type stubSource struct {
	values    map[meter.MetricKind]float64
	refreshes int
	err       error
}

func (s *stubSource) Refresh(context.Context) error {
	s.refreshes++
	return s.err
}

func (s *stubSource) Get(k meter.MetricKind) (float64, bool) {
	v, ok := s.values[k]
	return v, ok
}

func TestSetup(t *testing.T) {
	src := &stubSource{values: map[meter.MetricKind]float64{meter.Temperature: 21.4}}

	var got []*Sensor
	calls := 0
	Setup("Living Room", []meter.MetricKind{meter.Temperature, meter.Battery}, src, func(s []*Sensor) {
		calls++
		got = s
	})

	if calls != 1 {
		t.Fatalf("add called %d times; want 1", calls)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sensors; want 2", len(got))
	}

	temp, battery := got[0], got[1]
	if temp.Name() != "Living Room Temperature" {
		t.Errorf("Name() = %q; want %q", temp.Name(), "Living Room Temperature")
	}
	if temp.Unit() != "°C" || temp.Kind() != meter.Temperature {
		t.Errorf("temperature sensor = %s/%s", temp.Kind(), temp.Unit())
	}
	if v, ok := temp.State(); !ok || v != 21.4 {
		t.Errorf("State() = %v, %v; want 21.4, true", v, ok)
	}

	if battery.Name() != "Living Room Battery" || battery.Unit() != "%" {
		t.Errorf("battery sensor = %q/%q", battery.Name(), battery.Unit())
	}
	if _, ok := battery.State(); ok {
		t.Error("battery State() ok = true; want no value")
	}
}

func TestSensorUpdate(t *testing.T) {
	src := &stubSource{}
	s := NewSensor("Meter", meter.Humidity, src)

	if err := s.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if src.refreshes != 1 {
		t.Errorf("refreshes = %d; want 1", src.refreshes)
	}

	src.err = errors.New("unreachable")
	if err := s.Update(context.Background()); !errors.Is(err, src.err) {
		t.Errorf("Update error = %v; want %v", err, src.err)
	}
}
