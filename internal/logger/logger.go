package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

// Init configures JSON output at the given level (info when empty or unknown).
func Init(level string) {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// TokenPrefix shortens a token value for log fields; full values are credentials.
// Values are cut on rune boundaries and invalid UTF-8 is replaced.
func TokenPrefix(value string) string {
	value = strings.ToValidUTF8(value, "\uFFFD")
	n := 0
	for i := range value {
		if n == 8 {
			return value[:i]
		}
		n++
	}
	return value
}
