// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"school_notification_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Field keys of the entries built here.
const (
	FieldComponent  = "component"
	FieldFeed       = "feed"
	FieldCollection = "collection"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger from the application configuration.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(formatterFor(cfg.Environment))

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		Log.WithError(err).Warnf("Invalid log level %q, using %s", cfg.LogLevel, level)
	}
	Log.SetLevel(level)

	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Info("Logger initialized")
}

// parseLevel falls back to info for an empty or unknown level.
func parseLevel(v string) (logrus.Level, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(v)
	if err != nil {
		return logrus.InfoLevel, err
	}
	return level, nil
}

// formatterFor emits JSON in deployed environments and readable text elsewhere.
func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField(FieldComponent, name)
}

// Feed returns the entry of one change-feed listener.
func Feed(name, collection string) *logrus.Entry {
	return Component("listener").WithFields(logrus.Fields{
		FieldFeed:       name,
		FieldCollection: collection,
	})
}
