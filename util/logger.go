// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// TimeLayout is the timestamp format of every log line.
const TimeLayout = "2006-01-02 15:04:05"

// Logger writes one line per event in the form
//
//	2006-01-02 15:04:05 | LEVEL | message
//
// to the console and to any attached sinks.  Loggers returned by
// [Logger.Session] share the parent's sinks and tag every message with
// the session identifier.  All methods are safe for concurrent use.
type Logger struct {
	base   *logrus.Logger
	level  LogLevel
	prefix string
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug) to stderr.
// Quiet only mutes the console: sinks still receive normal lines.
func NewLogger(verbosity int) *Logger {
	level := LogLevel(verbosity)
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&consoleFormatter{
		lineFormatter: lineFormatter{color: term.IsTerminal(int(os.Stderr.Fd()))},
		max:           logrusLevel(level),
	})
	base.SetLevel(logrusLevel(max(level, LogNormal)))
	return &Logger{base: base, level: level}
}

// SetOutput overrides the console writer (default: os.Stderr).  Colour
// is disabled since w is not known to be a terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
	l.base.SetFormatter(&consoleFormatter{max: logrusLevel(l.level)})
}

// AddSink mirrors every line, uncoloured, to w.  A sink records at
// least normal verbosity even when the console is quiet.  Write errors
// are reported on stderr by logrus and otherwise ignored.
func (l *Logger) AddSink(w io.Writer) {
	l.base.AddHook(&sinkHook{w: w, formatter: &lineFormatter{}})
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Session returns a child logger that prefixes messages with "[id] ".
func (l *Logger) Session(id string) *Logger {
	return &Logger{base: l.base, level: l.level, prefix: "[" + id + "] "}
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	l.base.Info(l.prefix + fmt.Sprintf(format, args...))
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.base.Warn(l.prefix + fmt.Sprintf(format, args...))
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.base.Debug(l.prefix + fmt.Sprintf(format, args...))
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.base.Trace(l.prefix + fmt.Sprintf(format, args...))
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.base.Error(l.prefix + fmt.Sprintf(format, args...))
}

func logrusLevel(v LogLevel) logrus.Level {
	switch {
	case v <= LogQuiet:
		return logrus.ErrorLevel
	case v == LogNormal:
		return logrus.InfoLevel
	case v == LogVerbose:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// ── formatting ───────────────────────────────────────────────────────

type lineFormatter struct {
	color bool
}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(e.Level.String())
	if f.color {
		level = colorize(e.Level, level)
	}
	return []byte(e.Time.Format(TimeLayout) + " | " + level + " | " + e.Message + "\n"), nil
}

// consoleFormatter drops entries more verbose than max, so the console
// can be quieter than the sinks sharing the same logrus.Logger.
type consoleFormatter struct {
	lineFormatter
	max logrus.Level
}

func (f *consoleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if e.Level > f.max {
		return nil, nil
	}
	return f.lineFormatter.Format(e)
}

func colorize(lvl logrus.Level, s string) string {
	code := 37
	switch lvl {
	case logrus.InfoLevel:
		code = 36
	case logrus.WarnLevel:
		code = 33
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		code = 31
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

// sinkHook copies each entry to an extra writer such as a DailyFile.
type sinkHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *sinkHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *sinkHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
