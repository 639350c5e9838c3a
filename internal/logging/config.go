// Package logging builds the zerolog logger shared by droidprune components.
//
// Logs are written for humans through a zerolog.ConsoleWriter. A profile sets
// the baseline, the config file may set a level, and the DROIDPRUNE_LOG_*
// environment variables override both.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "DROIDPRUNE_LOG_LEVEL"
	EnvLogTimestamp = "DROIDPRUNE_LOG_TIMESTAMP"
	EnvLogNoColor   = "DROIDPRUNE_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger configuration.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// Resolve applies, in order, the profile defaults, level (usually from the
// config file, ignored when empty or unknown) and the environment overrides.
func Resolve(profile Profile, level string) Config {
	cfg := defaultConfig(profile)
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	applyEnvOverrides(&cfg)
	return cfg
}

// New builds a logger from cfg.
func New(cfg Config, w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.NoColor,
		TimeFormat: time.TimeOnly,
	}
	if !cfg.Timestamp {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	zctx := zerolog.New(cw).Level(cfg.Level).With()
	if cfg.Timestamp {
		zctx = zctx.Timestamp()
	}
	return zctx.Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level. ok is false for the
// empty string and for unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
