package logger

import (
	"github.com/sirupsen/logrus"
)

// Log is usable before Init with default settings; Init applies the
// configured level and format.
var Log = logrus.New()

// Init initializes the structured logger.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// JSON in production, text in development.
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter switches to plain-text output (for development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
