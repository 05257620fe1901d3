// Package debuglog configures Logrus: caller reporting, UTC timestamps with
// subsecond precision, and a text or JSON formatter. Every main package
// should call Configure before logging.
package debuglog

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options control the logger. The zero value logs at Info in text format to
// the standard logger.
type Options struct {
	// Level is a logrus level name such as "debug" or "warn".
	Level string

	// Format is "text" or "json".
	Format string

	// If true, text output is highlighted with ANSI colors.
	ForceColors bool

	// If not nil, this will set up the given logger instead of
	// logrus.StandardLogger(). Used by tests.
	Logger *logrus.Logger
}

// Configure sets up the logger. It's safe to call more than once, but not
// concurrently.
func Configure(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(opts.Level); err != nil {
			return err
		}
	}

	var formatter logrus.Formatter
	switch opts.Format {
	case "", "text":
		formatter = &logrus.TextFormatter{
			FullTimestamp:             true,
			TimestampFormat:           "2006-01-02 15:04:05.000000 MST",
			ForceColors:               opts.ForceColors,
			EnvironmentOverrideColors: true,
		}
	case "json":
		formatter = &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
		}
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	opts.Logger.SetLevel(level)
	opts.Logger.SetReportCaller(true)
	opts.Logger.ReplaceHooks(make(logrus.LevelHooks))
	opts.Logger.AddHook(utcHook{})
	opts.Logger.AddHook(newFilenameHook())
	opts.Logger.SetFormatter(formatter)
	opts.Logger.WithFields(logrus.Fields{
		"level":  level.String(),
		"format": opts.Format,
	}).Debug("Initialized Logrus")
	return nil
}

// utcHook converts entry timestamps to UTC.
type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook strips the module root from caller file paths.
type filenameHook struct {
	prefix string
}

func newFilenameHook() filenameHook {
	_, file, _, ok := runtime.Caller(0)
	localPath := "internal/debuglog/setup.go"
	if !ok || !strings.HasSuffix(file, localPath) {
		return filenameHook{}
	}
	return filenameHook{
		prefix: file[:len(file)-len(localPath)],
	}
}

func (hook filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if entry.HasCaller() {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
