package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"switchbot-meter/internal/meter"
)

type Config struct {
	AppEnv     string
	LogLevel   slog.Level
	ConfigFile string

	MeterMAC            string
	MeterName           string
	ScanInterval        time.Duration
	MonitoredConditions []meter.MetricKind

	BLEAdapter        string
	BLEConnectTimeout time.Duration

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	HTTPAddr string
}

const DefaultMeterName = "SwitchBot Meter"

// LoadFromEnv builds the configuration from the environment. When CONFIG_FILE is set the
// platform block is read from that YAML file first and environment values override it.
func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	var platform Platform
	configFile := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if configFile != "" {
		platform, err = LoadPlatformFile(configFile)
		if err != nil {
			return Config{}, err
		}
	}

	mac := strings.TrimSpace(os.Getenv("METER_MAC"))
	if mac == "" {
		mac = platform.MAC
	}
	if mac == "" {
		return Config{}, fmt.Errorf("METER_MAC is required")
	}
	if hw, err := net.ParseMAC(mac); err != nil || len(hw) != 6 {
		return Config{}, fmt.Errorf("invalid METER_MAC %q (expected AA:BB:CC:DD:EE:FF)", mac)
	}
	mac = strings.ToUpper(mac)

	name := strings.TrimSpace(os.Getenv("METER_NAME"))
	if name == "" {
		name = platform.Name
	}
	if name == "" {
		name = DefaultMeterName
	}

	scanInterval := time.Duration(platform.ScanInterval)
	if s := strings.TrimSpace(os.Getenv("METER_SCAN_INTERVAL")); s != "" {
		scanInterval, err = time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid METER_SCAN_INTERVAL %q: %w", s, err)
		}
		if scanInterval <= 0 {
			return Config{}, fmt.Errorf("METER_SCAN_INTERVAL must be positive, got %v", scanInterval)
		}
	}
	if scanInterval == 0 {
		scanInterval = meter.DefaultInterval
	}

	conditions := platform.MonitoredConditions
	if s := strings.TrimSpace(os.Getenv("METER_MONITORED_CONDITIONS")); s != "" {
		conditions = strings.Split(s, ",")
	}
	monitored, err := parseConditions(conditions)
	if err != nil {
		return Config{}, err
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}

	connectTimeoutStr := strings.TrimSpace(os.Getenv("BLE_CONNECT_TIMEOUT"))
	if connectTimeoutStr == "" {
		connectTimeoutStr = "10s"
	}
	connectTimeout, err := time.ParseDuration(connectTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLE_CONNECT_TIMEOUT %q: %w", connectTimeoutStr, err)
	}
	if connectTimeout <= 0 {
		return Config{}, fmt.Errorf("BLE_CONNECT_TIMEOUT must be positive, got %v", connectTimeout)
	}

	mqttEnabledStr := strings.TrimSpace(os.Getenv("MQTT_ENABLED"))
	if mqttEnabledStr == "" {
		mqttEnabledStr = "true"
	}
	mqttEnabled, err := strconv.ParseBool(mqttEnabledStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_ENABLED %q: %w", mqttEnabledStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "switchbot-meter"
	}

	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "switchbot"
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		ConfigFile:          configFile,
		MeterMAC:            mac,
		MeterName:           name,
		ScanInterval:        scanInterval,
		MonitoredConditions: monitored,
		BLEAdapter:          bleAdapter,
		BLEConnectTimeout:   connectTimeout,
		MQTTEnabled:         mqttEnabled,
		MQTTBroker:          mqttBroker,
		MQTTPort:            mqttPort,
		MQTTClientID:        mqttClientID,
		MQTTTopicPrefix:     mqttTopicPrefix,
		HTTPAddr:            httpAddr,
	}, nil
}

func parseConditions(in []string) ([]meter.MetricKind, error) {
	var out []meter.MetricKind
	seen := make(map[meter.MetricKind]bool)
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		k, err := meter.ParseMetricKind(s)
		if err != nil {
			return nil, fmt.Errorf("monitored_conditions: %w", err)
		}
		if seen[k] {
			return nil, fmt.Errorf("monitored_conditions: duplicate %q", k.Key())
		}
		seen[k] = true
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("METER_MONITORED_CONDITIONS is required (any of: battery, humidity, temperature)")
	}
	return out, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
