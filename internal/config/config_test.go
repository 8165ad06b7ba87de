package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"switchbot-meter/internal/meter"
)

var configEnv = []string{
	"APP_ENV", "LOG_LEVEL", "CONFIG_FILE",
	"METER_MAC", "METER_NAME", "METER_SCAN_INTERVAL", "METER_MONITORED_CONDITIONS",
	"BLE_ADAPTER", "BLE_CONNECT_TIMEOUT",
	"MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
	"HTTP_ADDR",
}

// clearEnv resets every variable LoadFromEnv reads and sets the required ones.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
	t.Setenv("METER_MAC", "e2:7c:4a:11:22:33")
	t.Setenv("METER_MONITORED_CONDITIONS", "battery,humidity,temperature")
}

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meter.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.MeterMAC != "E2:7C:4A:11:22:33" {
		t.Errorf("MeterMAC = %q, want upper-cased address", got.MeterMAC)
	}
	if got.MeterName != DefaultMeterName {
		t.Errorf("MeterName = %q, want %q", got.MeterName, DefaultMeterName)
	}
	if got.ScanInterval != 300*time.Second {
		t.Errorf("ScanInterval = %v, want 5m0s", got.ScanInterval)
	}
	wantConditions := []meter.MetricKind{meter.Battery, meter.Humidity, meter.Temperature}
	if !reflect.DeepEqual(got.MonitoredConditions, wantConditions) {
		t.Errorf("MonitoredConditions = %v, want %v", got.MonitoredConditions, wantConditions)
	}
	if got.BLEAdapter != "hci0" {
		t.Errorf("BLEAdapter = %q, want hci0", got.BLEAdapter)
	}
	if got.BLEConnectTimeout != 10*time.Second {
		t.Errorf("BLEConnectTimeout = %v, want 10s", got.BLEConnectTimeout)
	}
	if !got.MQTTEnabled {
		t.Error("MQTTEnabled = false, want true")
	}
	if got.MQTTBroker != "localhost" || got.MQTTPort != 1883 {
		t.Errorf("MQTT = %s:%d, want localhost:1883", got.MQTTBroker, got.MQTTPort)
	}
	if got.MQTTClientID != "switchbot-meter" {
		t.Errorf("MQTTClientID = %q, want switchbot-meter", got.MQTTClientID)
	}
	if got.MQTTTopicPrefix != "switchbot" {
		t.Errorf("MQTTTopicPrefix = %q, want switchbot", got.MQTTTopicPrefix)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
}

func TestLoadFromEnv_Required(t *testing.T) {
	t.Run("missing mac", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("METER_MAC", "")
		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("LoadFromEnv() error = nil, want non-nil")
		}
	})

	t.Run("missing conditions", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("METER_MONITORED_CONDITIONS", "")
		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("LoadFromEnv() error = nil, want non-nil")
		}
	})
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "mac garbage", key: "METER_MAC", value: "not-a-mac"},
		{name: "mac too long", key: "METER_MAC", value: "00:00:00:00:fe:80:00:00"},
		{name: "interval garbage", key: "METER_SCAN_INTERVAL", value: "soon"},
		{name: "interval zero", key: "METER_SCAN_INTERVAL", value: "0s"},
		{name: "interval negative", key: "METER_SCAN_INTERVAL", value: "-1m"},
		{name: "unknown condition", key: "METER_MONITORED_CONDITIONS", value: "battery,pressure"},
		{name: "duplicate condition", key: "METER_MONITORED_CONDITIONS", value: "battery,battery"},
		{name: "connect timeout", key: "BLE_CONNECT_TIMEOUT", value: "0s"},
		{name: "mqtt enabled", key: "MQTT_ENABLED", value: "maybe"},
		{name: "mqtt port", key: "MQTT_PORT", value: "eighty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_Conditions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []meter.MetricKind
	}{
		{name: "single", in: "temperature", want: []meter.MetricKind{meter.Temperature}},
		{name: "keeps order", in: "temperature,battery", want: []meter.MetricKind{meter.Temperature, meter.Battery}},
		{name: "whitespace and case", in: " Humidity , BATTERY ", want: []meter.MetricKind{meter.Humidity, meter.Battery}},
		{name: "empty items skipped", in: "humidity,,", want: []meter.MetricKind{meter.Humidity}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("METER_MONITORED_CONDITIONS", tt.in)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got.MonitoredConditions, tt.want) {
				t.Errorf("MonitoredConditions = %v, want %v", got.MonitoredConditions, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	path := writeFile(t, `
mac: "AA:BB:CC:DD:EE:FF"
name: Living Room
scan_interval: 120
monitored_conditions:
  - temperature
  - humidity
`)

	t.Run("file values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("METER_MAC", "")
		t.Setenv("METER_MONITORED_CONDITIONS", "")
		t.Setenv("CONFIG_FILE", path)

		got, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v, want nil", err)
		}
		if got.MeterMAC != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("MeterMAC = %q", got.MeterMAC)
		}
		if got.MeterName != "Living Room" {
			t.Errorf("MeterName = %q, want Living Room", got.MeterName)
		}
		if got.ScanInterval != 2*time.Minute {
			t.Errorf("ScanInterval = %v, want 2m0s", got.ScanInterval)
		}
		want := []meter.MetricKind{meter.Temperature, meter.Humidity}
		if !reflect.DeepEqual(got.MonitoredConditions, want) {
			t.Errorf("MonitoredConditions = %v, want %v", got.MonitoredConditions, want)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", path)
		t.Setenv("METER_NAME", "Bedroom")
		t.Setenv("METER_SCAN_INTERVAL", "30s")

		got, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v, want nil", err)
		}
		if got.MeterMAC != "E2:7C:4A:11:22:33" {
			t.Errorf("MeterMAC = %q, want env value", got.MeterMAC)
		}
		if got.MeterName != "Bedroom" {
			t.Errorf("MeterName = %q, want Bedroom", got.MeterName)
		}
		if got.ScanInterval != 30*time.Second {
			t.Errorf("ScanInterval = %v, want 30s", got.ScanInterval)
		}
		if len(got.MonitoredConditions) != 3 {
			t.Errorf("MonitoredConditions = %v, want env list", got.MonitoredConditions)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("LoadFromEnv() error = nil, want non-nil")
		}
	})
}

func TestLoadPlatformFile_ScanInterval(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", in: "scan_interval: 300", want: 5 * time.Minute},
		{name: "fractional seconds", in: "scan_interval: 1.5", want: 1500 * time.Millisecond},
		{name: "duration string", in: `scan_interval: "90s"`, want: 90 * time.Second},
		{name: "absent", in: "name: x", want: 0},
		{name: "zero", in: "scan_interval: 0", wantErr: true},
		{name: "garbage", in: "scan_interval: often", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadPlatformFile(writeFile(t, tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadPlatformFile() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadPlatformFile() error = %v", err)
			}
			if time.Duration(p.ScanInterval) != tt.want {
				t.Errorf("ScanInterval = %v, want %v", time.Duration(p.ScanInterval), tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warning ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "nope", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
