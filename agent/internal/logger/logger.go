package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var L zerolog.Logger

// Init wires the package logger. When path is empty everything goes to a
// console writer on stdout; otherwise log lines are mirrored to the file.
func Init(path string) error {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	var w io.Writer = console
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = io.MultiWriter(console, f)
	}
	L = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func Infof(format string, args ...any)  { L.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { L.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { L.Error().Msgf(format, args...) }
