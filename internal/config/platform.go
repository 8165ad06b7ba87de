package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform is the sensor platform block of a YAML configuration file:
//
//	mac: "E2:7C:4A:11:22:33"
//	name: Living Room
//	scan_interval: 120
//	monitored_conditions: [battery, humidity, temperature]
type Platform struct {
	MAC                 string   `yaml:"mac"`
	Name                string   `yaml:"name"`
	ScanInterval        Interval `yaml:"scan_interval"`
	MonitoredConditions []string `yaml:"monitored_conditions"`
}

// Interval accepts either a number of seconds or a Go duration string.
type Interval time.Duration

func (i *Interval) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" {
		*i = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return fmt.Errorf("scan_interval must be positive, got %v", secs)
		}
		*i = Interval(time.Duration(secs * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid scan_interval %q: %w", s, err)
	}
	if d <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %v", d)
	}
	*i = Interval(d)
	return nil
}

// LoadPlatformFile reads a platform block from path.
func LoadPlatformFile(path string) (Platform, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Platform{}, fmt.Errorf("CONFIG_FILE %q: %w", path, err)
	}

	var p Platform
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Platform{}, fmt.Errorf("CONFIG_FILE %q: %w", path, err)
	}
	p.MAC = strings.TrimSpace(p.MAC)
	p.Name = strings.TrimSpace(p.Name)
	return p, nil
}
