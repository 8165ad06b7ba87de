package meter

import (
	"fmt"
	"strings"
)

// MetricKind identifies one of the quantities a meter reports.
type MetricKind int

const (
	Battery MetricKind = iota
	Humidity
	Temperature
)

// AllMetrics lists every metric in reporting order.
var AllMetrics = []MetricKind{Battery, Humidity, Temperature}

type metricInfo struct {
	key   string
	label string
	unit  string
}

var metricTable = map[MetricKind]metricInfo{
	Battery:     {key: "battery", label: "Battery", unit: "%"},
	Humidity:    {key: "humidity", label: "Humidity", unit: "%"},
	Temperature: {key: "temperature", label: "Temperature", unit: "°C"},
}

// Key is the configuration spelling of the metric (e.g. "battery").
func (k MetricKind) Key() string {
	if info, ok := metricTable[k]; ok {
		return info.key
	}
	return fmt.Sprintf("metric(%d)", int(k))
}

// Label is the display label appended to the entity name.
func (k MetricKind) Label() string {
	return metricTable[k].label
}

// Unit is the unit of measurement for the metric.
func (k MetricKind) Unit() string {
	return metricTable[k].unit
}

func (k MetricKind) String() string {
	return k.Key()
}

// Valid reports whether k is a known metric.
func (k MetricKind) Valid() bool {
	_, ok := metricTable[k]
	return ok
}

// ParseMetricKind maps a configuration key to a MetricKind. Matching is case-insensitive.
func ParseMetricKind(s string) (MetricKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllMetrics {
		if metricTable[k].key == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q (allowed: battery, humidity, temperature)", s)
}
