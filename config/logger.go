package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/generic"
)

// NewLogger builds the process logger. Components derive entries from it
// with a "component" field.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, generic.ErrInvalidInput)
	}
	return level, nil
}

// LogError records a failed operation with its module and function, the
// way request handlers report errors they do not return.
func LogError(logger logrus.FieldLogger, module, fn string, err error) {
	logger.WithFields(logrus.Fields{
		"module":   module,
		"function": fn,
	}).WithError(err).Error("operation failed")
}
