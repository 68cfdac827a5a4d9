// Package xlog builds the logrus logger shared across the daemon.
package xlog

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger at levelName, formatted the same way across
// every component so session logs can be filtered and grepped uniformly.
func New(levelName string) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
