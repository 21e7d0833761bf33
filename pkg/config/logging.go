package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// InitLogging configures the process-wide logger. LOG_LEVEL accepts the
// usual logrus names; anything unparseable falls back to info.
func InitLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level := log.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := log.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}
