package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out. Unknown levels fall back to info and
// are reported on the returned logger.
func New(level string, json bool, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.Out = out

	if json {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006/01/02 15:04:05",
			FullTimestamp:   true,
			DisableQuote:    true,
		})
	}

	l, err := ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("log level %q is not valid, using info", level)
		return log
	}
	log.SetLevel(l)
	return log
}

// ParseLevel accepts logrus level names plus "critical", which maps to fatal.
func ParseLevel(level string) (logrus.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "critical" {
		return logrus.FatalLevel, nil
	}
	return logrus.ParseLevel(level)
}
