// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides structured, leveled logging for the coordinator
// and its collaborators. It wraps github.com/charmbracelet/log so every
// subsystem logs through a named component the same way, and adds an
// optional syslog sink for host-agent deployments.
package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Level mirrors charmlog's levels so callers don't need to import it directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) charm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config configures a Logger.
type Config struct {
	Level  Level
	Output io.Writer
	Prefix string
	Syslog *SyslogConfig
}

// DefaultConfig returns the configuration used when no explicit Config is given.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Logger wraps a charmbracelet/log logger with a fixed component name.
type Logger struct {
	inner *charmlog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Syslog != nil && cfg.Syslog.Enabled {
		if w, err := NewSyslogWriter(*cfg.Syslog); err == nil {
			out = w
		}
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.charm(),
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
	})
	return &Logger{inner: l}
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide default Logger, built lazily from
// DefaultConfig so package init order doesn't matter.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(DefaultConfig())
	})
	return defaultLog
}

// WithComponent returns a child logger tagged with the given subsystem name,
// e.g. logging.WithComponent("coordinator").
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

// WithComponent returns a child logger tagged with the given subsystem name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{inner: l.inner.With("component", name)}
}

// WithError returns a child logger with the error attached as a field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{inner: l.inner.With("error", err)}
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(kvs ...any) *Logger {
	return &Logger{inner: l.inner.With(kvs...)}
}

func (l *Logger) Debug(msg string, kvs ...any) { l.inner.Debug(msg, kvs...) }
func (l *Logger) Info(msg string, kvs ...any)  { l.inner.Info(msg, kvs...) }
func (l *Logger) Warn(msg string, kvs ...any)  { l.inner.Warn(msg, kvs...) }
func (l *Logger) Error(msg string, kvs ...any) { l.inner.Error(msg, kvs...) }
func (l *Logger) Fatal(msg string, kvs ...any) { l.inner.Fatal(msg, kvs...) }

// Debug logs at debug level on the default logger.
func Debug(format string, args ...any) { Default().inner.Debug(fmt.Sprintf(format, args...)) }

// Info logs at info level on the default logger.
func Info(format string, args ...any) { Default().inner.Info(fmt.Sprintf(format, args...)) }

// Warn logs at warn level on the default logger.
func Warn(format string, args ...any) { Default().inner.Warn(fmt.Sprintf(format, args...)) }

// Error logs at error level on the default logger.
func Error(format string, args ...any) { Default().inner.Error(fmt.Sprintf(format, args...)) }

// APILog logs a printf-style message at the named level ("debug", "info",
// "warn", "error"); an unknown level logs at info.
func APILog(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch strings.ToLower(level) {
	case "debug":
		Default().inner.Debug(msg)
	case "warn", "warning":
		Default().inner.Warn(msg)
	case "error":
		Default().inner.Error(msg)
	default:
		Default().inner.Info(msg)
	}
}

// SyslogConfig configures an optional syslog sink.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns a disabled syslog config with sensible defaults
// for the fields that matter once it's enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "midonet",
		Facility: 1, // LOG_USER
	}
}

// NewSyslogWriter dials a syslog daemon and returns an io.Writer that sends
// each Write as a syslog message tagged with cfg.Tag.
func NewSyslogWriter(cfg SyslogConfig) (io.Writer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "midonet"
	}

	priority := syslog.Priority(cfg.Facility<<3) | syslog.LOG_INFO
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, priority, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog: %w", err)
	}
	return w, nil
}
