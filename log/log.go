// Package log provides the process-wide structured logger. It wraps zerolog
// and exposes printf-style and key-value helpers for every level.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	logTestWriterName = "log_test_writer"
	logTestTime       = "log_test_time"

	// DebugFileName is the name of the rotating debug log inside its
	// directory.
	DebugFileName = "kernel-prover.debug.log"
)

var (
	log      zerolog.Logger
	logLevel = LogLevelInfo

	// logTestWriter is used by tests to capture the output.
	logTestWriter io.Writer

	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"

	// debugOut receives every message at debug level, regardless of the
	// configured level and of the ignored modules.
	debugOut io.Writer
	// ignoredModules are the module prefixes kept out of the main output.
	ignoredModules = NegativePatterns(os.Getenv("DEBUG"))
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = LogLevelError
	}
	Init(level, "stderr", nil)
}

// NegativePatterns returns the module prefixes excluded by a comma separated
// DEBUG string, such as "kernel-prover:*,-gnark*". Only the patterns starting
// with '-' are returned, without the '-' and without wildcards.
func NegativePatterns(s string) []string {
	patterns := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "-") {
			continue
		}
		if p = strings.ReplaceAll(p[1:], "*", ""); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// SetIgnoredModules sets the DEBUG string used to exclude modules from the
// main output. It takes effect for the loggers returned by Module afterwards.
func SetIgnoredModules(s string) {
	ignoredModules = NegativePatterns(s)
}

func isIgnored(module string) bool {
	for _, p := range ignoredModules {
		if strings.HasPrefix(module, p) {
			return true
		}
	}
	return false
}

// SetDebugFile enables a rotating debug log in dir. Files are rotated at
// 30MB, the last five are kept gzipped. It takes effect on the next call to
// Init. The returned closer releases the current file.
func SetDebugFile(dir string) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create debug log directory: %w", err)
	}
	rot := &lumberjack.Logger{
		Filename:   filepath.Join(dir, DebugFileName),
		MaxSize:    30, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}
	debugOut = rot
	return rot, nil
}

// invalidCharChecker panics when zerolog had to replace invalid UTF-8 in the
// JSON stream, if panicOnInvalidChars is set.
type invalidCharChecker struct {
	out io.Writer
}

var invalidChar = []byte(`\ufffd`)

func (w *invalidCharChecker) Write(p []byte) (int, error) {
	if panicOnInvalidChars && bytes.Contains(p, invalidChar) {
		panic(fmt.Sprintf("log line contains invalid chars: %q", p))
	}
	return w.out.Write(p)
}

// minLevelWriter forwards only the messages at min level and above.
type minLevelWriter struct {
	io.Writer
	min zerolog.Level
}

func (w *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.Write(p)
}

// Init initializes the logger. Output can be "stdout", "stderr" or a file
// path. If errorOutput is not nil, warnings and errors are also written there.
// If a debug file was set, it receives every message at debug level.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	case logTestWriterName:
		out = logTestWriter
	case logTestTime:
		out = zerolog.ConsoleWriter{Out: logTestWriter, NoColor: true}
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	out = &invalidCharChecker{out: out}
	loggerLevel := lvl
	if debugOut != nil {
		out = zerolog.MultiLevelWriter(&minLevelWriter{out, lvl}, debugOut)
		loggerLevel = zerolog.DebugLevel
	}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, &minLevelWriter{&invalidCharChecker{out: errorOutput}, zerolog.WarnLevel})
	}
	logLevel = level
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	log = zerolog.New(out).Level(loggerLevel).With().Timestamp().Caller().Logger()
	gnark := Module("gnark")
	gnarklogger.Set(gnark.Level(max(gnark.GetLevel(), zerolog.InfoLevel)))
	log.Info().Msgf("logger construction succeeded at level %s with output %s", level, output)
}

// Module returns a child logger tagged with the module name. Modules matching
// an ignored pattern only write to the debug file, if any.
func Module(name string) zerolog.Logger {
	if !isIgnored(name) {
		return log.With().Str("module", name).Logger()
	}
	if debugOut == nil {
		return zerolog.Nop()
	}
	return zerolog.New(debugOut).Level(zerolog.DebugLevel).With().Timestamp().Str("module", name).Logger()
}

// Level returns the current log level.
func Level() string {
	return logLevel
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

// Debug sends a debug level log message
func Debug(args ...any) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	log.Debug().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Info sends an info level log message
func Info(args ...any) {
	log.Info().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Warn sends a warn level log message
func Warn(args ...any) {
	log.Warn().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Error sends an error level log message
func Error(args ...any) {
	log.Error().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Fatal sends a fatal level log message and exits, printing the stack trace.
func Fatal(args ...any) {
	log.Fatal().CallerSkipFrame(1).Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

// Debugf sends a formatted debug level log message
func Debugf(template string, args ...any) {
	log.Debug().CallerSkipFrame(1).Msgf(template, args...)
}

// Infof sends a formatted info level log message
func Infof(template string, args ...any) {
	log.Info().CallerSkipFrame(1).Msgf(template, args...)
}

// Warnf sends a formatted warn level log message
func Warnf(template string, args ...any) {
	log.Warn().CallerSkipFrame(1).Msgf(template, args...)
}

// Errorf sends a formatted error level log message
func Errorf(template string, args ...any) {
	log.Error().CallerSkipFrame(1).Msgf(template, args...)
}

// Fatalf sends a formatted fatal level log message and exits.
func Fatalf(template string, args ...any) {
	Fatal(fmt.Sprintf(template, args...))
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	log.Debug().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	log.Info().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	log.Warn().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Errorw sends an error level log message with a special format for errors.
func Errorw(err error, msg string) {
	log.Error().CallerSkipFrame(1).Err(err).Msg(msg)
}
