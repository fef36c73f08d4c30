// Package corelog provides the structured logging surface used by every
// layer of the trust and installation core. It mirrors the narrow
// Debug/Info/Warn/Error interface the teacher project exposes from its own
// config package, but backs it with zap so the four --log-format variants
// named in the external CLI contract (default, pretty, tree, json) can be
// satisfied by picking an encoder rather than hand-rolling one.
package corelog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface passed down into trust, transport, and
// installer operations. Keeping it an interface (rather than exposing *zap.Logger
// directly) lets tests substitute a recording logger without pulling in zap.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// With returns a child logger that nests under the given operation name.
	// In "tree" format this increases the indentation of subsequent lines;
	// in other formats it's folded into a "component" field.
	With(component string) Logger
}

// Format selects the on-disk/on-terminal rendering of log lines.
type Format string

const (
	FormatDefault Format = "default"
	FormatPretty  Format = "pretty"
	FormatTree    Format = "tree"
	FormatJSON    Format = "json"
)

// Options configures New.
type Options struct {
	Format  Format
	Verbose bool
}

type zapLogger struct {
	sugar  *zap.SugaredLogger
	format Format
	depth  int
	mu     *sync.Mutex // shared with child loggers; no method locks it
}

// New builds a Logger for the given options. The returned logger writes to
// stderr, matching the teacher's and the broader corpus's convention of
// keeping stdout free for command output.
func New(opts Options) Logger {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"

	var encoder zapcore.Encoder
	switch opts.Format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encCfg)
	default: // default, pretty, tree all use a human console encoder
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	base := zap.New(core)

	return &zapLogger{sugar: base.Sugar(), format: opts.Format, mu: &sync.Mutex{}}
}

func (l *zapLogger) prefix() string {
	if l.format != FormatTree || l.depth == 0 {
		return ""
	}
	return strings.Repeat("  ", l.depth) + "↳ "
}

func redactPairs(kv []interface{}) []interface{} {
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		if key, ok := out[i].(string); ok && isSecretKey(key) {
			out[i+1] = "[redacted]"
		}
	}
	return out
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "password") || strings.Contains(k, "authorization")
}

func (l *zapLogger) Debug(msg string, kv ...interface{}) {
	l.sugar.Debugw(l.prefix()+msg, redactPairs(kv)...)
}

func (l *zapLogger) Info(msg string, kv ...interface{}) {
	l.sugar.Infow(l.prefix()+msg, redactPairs(kv)...)
}

func (l *zapLogger) Warn(msg string, kv ...interface{}) {
	l.sugar.Warnw(l.prefix()+msg, redactPairs(kv)...)
}

func (l *zapLogger) Error(msg string, kv ...interface{}) {
	l.sugar.Errorw(l.prefix()+msg, redactPairs(kv)...)
}

func (l *zapLogger) With(component string) Logger {
	child := &zapLogger{
		sugar:  l.sugar.With("component", component),
		format: l.format,
		depth:  l.depth + 1,
		mu:     l.mu,
	}
	return child
}

// noop is used as the default logger when none is provided, matching the
// teacher's defaultLogger() fallback.
type noop struct{}

func (noop) Debug(string, ...interface{}) {}
func (noop) Info(string, ...interface{})  {}
func (noop) Warn(string, ...interface{})  {}
func (noop) Error(string, ...interface{}) {}
func (n noop) With(string) Logger         { return n }

// Noop returns a Logger that discards everything.
func Noop() Logger { return noop{} }
