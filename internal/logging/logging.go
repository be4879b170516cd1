package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the root logger. format is "json" or "text"; an unknown level
// falls back to info.
func New(level, format string) *logrus.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
