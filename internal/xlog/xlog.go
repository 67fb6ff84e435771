// Package xlog centralises the structured logger shared by every package
// in this module, using zerolog's structured fields instead of plain
// log.Printf call sites.
package xlog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the package-level logger every component logs through. It is
// configured once at process init from the environment, mirroring the
// teacher's "just enough config" footprint (cmd/main.go's flag.Int) rather
// than pulling in a configuration framework.
var Log = newLogger()

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v, ok := os.LookupEnv("TORRENTWIRE_LOG_LEVEL"); ok {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out zerolog.Logger
	if strings.EqualFold(os.Getenv("TORRENTWIRE_LOG_FORMAT"), "json") {
		out = zerolog.New(os.Stderr)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	return out.Level(level).With().Timestamp().Logger()
}

// For returns a child logger tagged with a "component" field, the
// convention every package uses when it needs a scoped logger (e.g.
// xlog.For("tracker"), xlog.For("peer.session")).
func For(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
