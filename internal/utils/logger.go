package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets up the global logger with a console writer on stderr and,
// when logFile is non-empty, a second JSON writer appending to that file.
func InitLogger(debug bool, logFile string) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	var writer zerolog.LevelWriter = zerolog.MultiLevelWriter(console)
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writer = zerolog.MultiLevelWriter(console, f)
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return nil
}

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
