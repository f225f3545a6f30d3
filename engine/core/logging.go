package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Penumbra 🌘 ",
				CallerOffset:    1,
			})
			l.SetLevel(log.DebugLevel)
			singleton = &logger{l}
		})
	return singleton
}

// ParseLogLevel maps the textual level used in configuration files.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	}
	return "unknown"
}

func SetLogLevel(level LogLevel) {
	l := getLogger()
	switch level {
	case DebugLevel:
		l.SetLevel(log.DebugLevel)
	case InfoLevel:
		l.SetLevel(log.InfoLevel)
	case WarnLevel:
		l.SetLevel(log.WarnLevel)
	case ErrorLevel:
		l.SetLevel(log.ErrorLevel)
	}
}

// SetLogOutput redirects the engine log. Passing nil restores stderr.
func SetLogOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	getLogger().SetOutput(w)
}

func GetLogLevel() LogLevel {
	switch getLogger().GetLevel() {
	case log.DebugLevel:
		return DebugLevel
	case log.WarnLevel:
		return WarnLevel
	case log.ErrorLevel, log.FatalLevel:
		return ErrorLevel
	}
	return InfoLevel
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

// LogFatal logs and exits the process with status 1. Deferred calls and any
// pending teardown do not run.
func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
