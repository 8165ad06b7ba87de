package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"switchbot-meter/internal/meter"
)

const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultThrottled = "throttled"
)

// Recorder exports meter refreshes and readings to Prometheus. It implements meter.Observer.
type Recorder struct {
	refreshes   *prometheus.CounterVec
	duration    prometheus.Histogram
	readings    *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	pollErrors  prometheus.Counter
	publishes   *prometheus.CounterVec

	monitored []meter.MetricKind
}

// NewRecorder registers the meter collectors with reg. Only monitored metrics get a
// reading gauge.
func NewRecorder(reg prometheus.Registerer, address string, monitored []meter.MetricKind) *Recorder {
	labels := prometheus.Labels{"address": address}

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "switchbot_meter_refresh_total",
		Help:        "Refresh calls by outcome.",
		ConstLabels: labels,
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "switchbot_meter_refresh_duration_seconds",
		Help:        "Duration of device transactions (connect, two exchanges, disconnect).",
		ConstLabels: labels,
		Buckets:     prometheus.ExponentialBuckets(0.25, 2, 8),
	})
	readings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "switchbot_meter_reading",
		Help:        "Last successfully read value per metric.",
		ConstLabels: labels,
	}, []string{"metric", "unit"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "switchbot_meter_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful refresh.",
		ConstLabels: labels,
	})
	pollErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "switchbot_meter_poll_errors_total",
		Help:        "Entity updates that failed during a poll cycle.",
		ConstLabels: labels,
	})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "switchbot_meter_mqtt_publish_total",
		Help:        "MQTT state publishes by outcome.",
		ConstLabels: labels,
	}, []string{"result"})

	reg.MustRegister(refreshes, duration, readings, lastSuccess, pollErrors, publishes)

	for _, r := range []string{resultSuccess, resultFailure, resultThrottled} {
		refreshes.WithLabelValues(r)
	}

	return &Recorder{
		refreshes:   refreshes,
		duration:    duration,
		readings:    readings,
		lastSuccess: lastSuccess,
		pollErrors:  pollErrors,
		publishes:   publishes,
		monitored:   monitored,
	}
}

func (r *Recorder) RefreshThrottled() {
	r.refreshes.WithLabelValues(resultThrottled).Inc()
}

func (r *Recorder) RefreshSucceeded(reading meter.Reading, at time.Time, took time.Duration) {
	r.refreshes.WithLabelValues(resultSuccess).Inc()
	r.duration.Observe(took.Seconds())
	r.lastSuccess.Set(float64(at.UnixNano()) / 1e9)
	for _, k := range r.monitored {
		r.readings.WithLabelValues(k.Key(), k.Unit()).Set(reading.Value(k))
	}
}

func (r *Recorder) RefreshFailed(_ error, took time.Duration) {
	r.refreshes.WithLabelValues(resultFailure).Inc()
	r.duration.Observe(took.Seconds())
}

// PollError counts an entity update that failed.
func (r *Recorder) PollError() {
	r.pollErrors.Inc()
}

// Published counts an MQTT state publish.
func (r *Recorder) Published(err error) {
	if err != nil {
		r.publishes.WithLabelValues(resultFailure).Inc()
		return
	}
	r.publishes.WithLabelValues(resultSuccess).Inc()
}
