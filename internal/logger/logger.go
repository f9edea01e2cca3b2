// Package logger provides the service-wide zerolog configuration.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/config"
)

// New returns a logger tuned to the configured environment: development
// gets console output at debug level, testing stays quiet at warn, and
// production emits JSON at info. A nil config behaves like production so
// bootstrap failures are still logged.
func New(service string, cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	var out io.Writer = os.Stdout
	switch {
	case cfg == nil || cfg.IsProduction():
	case cfg.IsTesting():
		level = zerolog.WarnLevel
	default:
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).Level(level).With().
		Str("service", service).
		Timestamp().
		Logger()
}
