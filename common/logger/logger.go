// Package logger provides the process-wide structured logger used
// across the aujit demo binaries. It is a thin, component-tagged
// wrapper around github.com/charmbracelet/log exposing Info/Debug/Warn/
// Error/Fatal, each auto-tagging the caller's package as a "component".
package logger

import (
	"os"
	"runtime"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	base     *charmlog.Logger
	initOnce sync.Once

	componentCache sync.Map
)

// Init creates the global logger for appName, writing leveled, colored
// records to stderr. Safe to call more than once; only the first call
// takes effect.
func Init(appName string) {
	initOnce.Do(func() {
		base = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportTimestamp: true,
			Prefix:          appName,
		})
		base.SetLevel(charmlog.InfoLevel)
		base.Info("logger started")
	})
}

// SetDebugMode toggles DEBUG-level verbosity.
func SetDebugMode(enabled bool) {
	if base == nil {
		return
	}
	if enabled {
		base.SetLevel(charmlog.DebugLevel)
	} else {
		base.SetLevel(charmlog.InfoLevel)
	}
}

func logger() *charmlog.Logger {
	if base == nil {
		base = charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "aujit"})
	}
	return base
}

func Fatal(format string, args ...interface{}) {
	logger().With("component", component()).Fatalf(format, args...)
}

func Error(format string, args ...interface{}) {
	logger().With("component", component()).Errorf(format, args...)
}

func Warn(format string, args ...interface{}) {
	logger().With("component", component()).Warnf(format, args...)
}

func Info(format string, args ...interface{}) {
	logger().With("component", component()).Infof(format, args...)
}

func Debug(format string, args ...interface{}) {
	logger().With("component", component()).Debugf(format, args...)
}

// component derives a short tag ("AUDIO", "NET", ...) from the caller's
// file path, so log lines self-identify their subsystem without every
// call site passing one explicitly.
func component() string {
	_, file, _, ok := runtime.Caller(2)
	if !ok {
		return "GENERAL"
	}

	if cached, exists := componentCache.Load(file); exists {
		return cached.(string)
	}

	c := mapFileToComponent(file)
	componentCache.Store(file, c)
	return c
}

func mapFileToComponent(file string) string {
	file = strings.ToLower(file)

	switch {
	case strings.Contains(file, "audio/ajb"):
		return "AJB"
	case strings.Contains(file, "audio/aubuf"):
		return "AUBUF"
	case strings.Contains(file, "audio/"):
		return "AUDIO"
	case strings.Contains(file, "/network"), strings.Contains(file, "net.go"):
		return "NET"
	case strings.Contains(file, "device"):
		return "DEVICE"
	case strings.Contains(file, "dashboard"):
		return "UI"
	case strings.Contains(file, "cmd/"):
		return "MAIN"
	default:
		return "GENERAL"
	}
}
