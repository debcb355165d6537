package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
	maxLogAgeDays = 28
)

// New creates a logger that writes to <dir>/<component>.log and returns it with a cleanup.
// The file is rotated once it grows past maxLogSizeMB.
func New(dir, component string, level logrus.Level) (*logrus.Entry, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(level)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, component+".log"),
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
	}

	logger.SetOutput(w)
	return logger.WithField("component", component), func() { _ = w.Close() }, nil
}

// Fallback logs to w when the log file cannot be opened.
func Fallback(w io.Writer, component string, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(level)
	logger.SetOutput(w)
	return logger.WithField("component", component)
}
