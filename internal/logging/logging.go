// Package logging configures the global zerolog logger used across the
// engine packages.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures global logging. Level is one of debug, info, warn,
// error; an unknown level falls back to info. When file is non-empty,
// logs are appended there instead of stderr.
func Setup(level, file string) error {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}

		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		return nil
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return nil
}
