package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"switchbot-meter/internal/config"
	"switchbot-meter/internal/utils"
)

// New returns the process logger: coloured tint output for dev builds, JSON otherwise.
// Every record carries the meter address and BLE adapter it is about.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg, version, appName)
}

func newWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:       cfg.LogLevel,
			AddSource:   true,
			TimeFormat:  time.Kitchen,
			NoColor:     cfg.AppEnv == "prod",
			ReplaceAttr: replaceAttr,
		})
		return slog.New(h).With(meterAttrs(cfg, appName)...)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: replaceAttr,
	})
	return slog.New(h).With(meterAttrs(cfg, appName)...).With(
		"version", version,
		"env", cfg.AppEnv,
	)
}

func meterAttrs(cfg config.Config, appName string) []any {
	attrs := []any{"app", appName}
	if cfg.MeterMAC != "" {
		attrs = append(attrs, "meter", cfg.MeterMAC)
	}
	if cfg.BLEAdapter != "" {
		attrs = append(attrs, "adapter", cfg.BLEAdapter)
	}
	return attrs
}

// replaceAttr prints raw BLE frames as hex and durations as text ("1.5s"), not as base64
// and nanosecond counts.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch v := a.Value.Any().(type) {
	case []byte:
		return slog.String(a.Key, utils.BytesToHex(v))
	case time.Duration:
		return slog.String(a.Key, v.String())
	}
	return a
}
