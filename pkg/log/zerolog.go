package log

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	grterrors "github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// ZerologLogger implements Logger on top of a zerolog.Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger adapts zl to the Logger interface.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: zl}
}

// Nop returns a logger that discards everything. Library types use it
// when no logger is configured.
func Nop() *ZerologLogger {
	return NewZerologLogger(zerolog.Nop())
}

// NewConsoleLogger returns the human-readable logger used by the CLI.
// Info and debug records are written to out as "[component] msg", warnings
// to errOut as "[WARNING component] msg" and errors to errOut as
// "[ERROR component] msg". Structured fields follow the message as
// key=value pairs.
func NewConsoleLogger(component string, out, errOut io.Writer, level Level) *ZerologLogger {
	w := &streamWriter{
		info:  newConsoleWriter(component, out),
		alert: newConsoleWriter(component, errOut),
	}
	return NewZerologLogger(zerolog.New(w).Level(level.zerolog()))
}

func newConsoleWriter(component string, out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatLevel: func(i interface{}) string {
			lvl, _ := i.(string)
			switch lvl {
			case zerolog.LevelWarnValue:
				return "[WARNING " + component + "]"
			case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
				return "[ERROR " + component + "]"
			case zerolog.LevelDebugValue, zerolog.LevelTraceValue:
				return "[DEBUG " + component + "]"
			default:
				return "[" + component + "]"
			}
		},
	}
}

// streamWriter splits records by severity between two sinks.
type streamWriter struct {
	info  io.Writer
	alert io.Writer
}

func (s *streamWriter) Write(p []byte) (int, error) {
	return s.info.Write(p)
}

func (s *streamWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.WarnLevel && l != zerolog.NoLevel {
		return s.alert.Write(p)
	}
	return s.info.Write(p)
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	emit(l.logger.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	emit(l.logger.Info(), msg, fields)
}

// Warn implements Logger.Warn. A leading error value is attached the same
// way Error does it.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	e, fields := l.withError(l.logger.Warn(), fields)
	emit(e, msg, fields)
}

// Error implements Logger.Error. A leading error value is attached with
// Err, and at debug level its cockroachdb stack trace is added too.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	e, fields := l.withError(l.logger.Error(), fields)
	emit(e, msg, fields)
}

func (l *ZerologLogger) withError(e *zerolog.Event, fields []any) (*zerolog.Event, []any) {
	if e == nil || len(fields) == 0 {
		return e, fields
	}
	err, ok := fields[0].(error)
	if !ok {
		return e, fields
	}
	e = e.Err(err)
	if l.logger.GetLevel() <= zerolog.DebugLevel {
		if st := extractStacktrace(err); st != "" {
			e = e.Str(StacktraceKey, st)
		}
	}
	return e, fields[1:]
}

// WarnObject logs obj's structured fields alongside msg.
func (l *ZerologLogger) WarnObject(msg string, obj zerolog.LogObjectMarshaler) {
	l.logger.Warn().EmbedObject(obj).Msg(msg)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	zl := level.zerolog()
	return zl >= l.logger.GetLevel() && zl >= zerolog.GlobalLevel()
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}

func (l Level) zerolog() zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// extractStacktrace returns the first stack trace recorded by
// cockroachdb/errors anywhere in err's chain, falling back to the verbose
// %+v rendering.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if details := errors.GetSafeDetails(e).SafeDetails; len(details) > 0 {
			return details[0]
		}
	}
	if verbose := fmt.Sprintf("%+v", err); verbose != err.Error() {
		return verbose
	}
	return ""
}

// InstallWarningSink routes warnings raised through pkg/errors.Warn to l.
// Warnings carrying structured fields are embedded when l is a
// *ZerologLogger. The returned func restores the previous routing.
func InstallWarningSink(l Logger) (restore func()) {
	grterrors.SetZerologWarnFunc(func(w error) {
		if zl, ok := l.(*ZerologLogger); ok {
			if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
				zl.WarnObject(w.Error(), obj)
				return
			}
		}
		l.Warn(w.Error())
	})
	return func() { grterrors.SetZerologWarnFunc(nil) }
}
