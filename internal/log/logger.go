package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. In dev mode output is human readable.
func Init(env string) {
	InitWriter(env, os.Stdout, zerolog.InfoLevel)
}

// InitWriter configures the global logger to write to w at the given level.
func InitWriter(env string, w io.Writer, level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	if env == "dev" {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(cw).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
