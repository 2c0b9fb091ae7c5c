// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to out, or stderr when out is nil. The level is
// applied globally so it can be changed at runtime with SetLevel.
func New(level string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	if err := SetLevel(level); err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger(), nil
}

// SetLevel changes the global log level; an empty level means info.
func SetLevel(level string) error {
	if level == "" {
		level = zerolog.LevelInfoValue
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(l)
	return nil
}
