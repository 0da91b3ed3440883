// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvLogLevel = "LIVECURSOR_LOG_LEVEL"

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileCLI
	ProfileTest
)

// New returns a logger for profile. EnvLogLevel overrides the profile's
// default level; "off" silences it.
func New(profile Profile) (*zap.Logger, error) {
	cfg := defaultConfig(profile)
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		if lvl == nil {
			return zap.NewNop(), nil
		}
		cfg.Level = zap.NewAtomicLevelAt(*lvl)
	}
	return cfg.Build()
}

func defaultConfig(profile Profile) zap.Config {
	switch profile {
	case ProfileTest:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.DisableStacktrace = true
		return cfg
	case ProfileCLI:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		return cfg
	default:
		return zap.NewProductionConfig()
	}
}

// parseLevel reports ok=false for unknown input. A nil level means off.
func parseLevel(raw string) (*zapcore.Level, bool) {
	var lvl zapcore.Level
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, false
	case "off", "none", "disabled":
		return nil, true
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, false
	}
	return &lvl, true
}
