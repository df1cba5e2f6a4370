package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filehash/config"
)

// New builds a logger writing to w in the configured format. Unknown levels
// fall back to info.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
		}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a config level to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Setup installs the configured logger as the global zerolog logger and
// returns it.
func Setup(cfg config.LoggingConfig) zerolog.Logger {
	logger := New(cfg, os.Stderr)
	log.Logger = logger
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	return logger
}
