// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging owns the process-wide logrus logger.
//
// Components accept a logrus.FieldLogger and fall back to Logger() when
// none is given, so tests can inject their own hook-backed logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newDefault()

	// logFile is the file opened by SetFile, closed on replacement.
	logFile *os.File
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	return l
}

// Init configures level and format of the shared logger.
// Unknown levels fall back to info, unknown formats to text.
func Init(level, format string) error {
	mu.Lock()
	defer mu.Unlock()

	log.SetLevel(ParseLevel(level))

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// ParseLevel maps a config string to a logrus level.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel changes the level of the shared logger.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(ParseLevel(level))
}

// SetOutput redirects the shared logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// SetFile appends log output to path, creating it with mode 0600.
// An empty path restores stderr.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		closeFileLocked()
		log.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	closeFileLocked()
	logFile = f
	log.SetOutput(f)
	return nil
}

// Close releases a file opened by SetFile.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	log.SetOutput(os.Stderr)
}

func closeFileLocked() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Or returns l, or the shared logger when l is nil.
func Or(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return Logger()
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
