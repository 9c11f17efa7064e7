// Package logging configures the process-wide structured logger (ambient
// stack, grounded on the teacher's observability/logging/logging.go): JSON
// output via log/slog, with a log-rotation sink for file-backed deployments.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config parameterizes Setup.
type Config struct {
	Service string
	Env     string
	Level   slog.Level

	// File, when set, tees output through a rotating log file in addition
	// to stdout (teacher pattern: gopkg.in/natefinch/lumberjack.v2).
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the default slog logger to emit structured JSON tagged
// with service/env, bridging the standard library `log` package so
// untouched teacher-style call sites keep working.
func Setup(cfg Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		})
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.Level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			default:
				return attr
			}
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(cfg.Service))}
	if env := strings.TrimSpace(cfg.Env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, a := range attrs {
		withArgs = append(withArgs, a)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
