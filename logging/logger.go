package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/astrachat/starwallet/config"
)

// Logger represents a logger instance. The interface alias lets callers pass
// either a bare logger or a pre-tagged entry.
type Logger = logrus.FieldLogger

// Fields represents structured logging fields
type Fields = logrus.Fields

// Level represents a log level
type Level = logrus.Level

// Log levels
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger creates a new configured logger instance
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithAccount creates a logger tagged with the wallet's account id,
// so multi-account processes can tell their wallets apart in logs.
func NewLoggerWithAccount(accountID string) Logger {
	return NewLogger().WithField("account", accountID)
}

// Nop returns a logger that discards everything; used as the default when a
// caller does not care about wallet logs.
func Nop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	return logger
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
