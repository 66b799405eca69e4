// Package logger wraps go.uber.org/zap behind the structured/printf hybrid
// API the rest of this module calls: WithField/WithFields/WithError chains
// for the structured call sites, and plain printf-style Debug/Info/Warn/Error
// for internal/queueing/pool.go's worker-pool logging. Grounded on the
// teacher's pervasive zap usage (e.g.
// web3-wallet-backend/internal/common/middleware.go), adapted to a single
// shared *Logger type rather than the teacher's *zap.Logger/*zap.SugaredLogger
// split.
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is zap's own level type, reused directly rather than shadowed.
type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

// Logger is a thin wrapper around a zap.SugaredLogger carrying a persistent
// field set, so WithField/WithField chains (this module's dominant calling
// style) and printf-style Info(format, args...) calls (internal/queueing/pool.go)
// both work off the same value.
type Logger struct {
	sugar  *zap.SugaredLogger
	base   *zap.Logger
	fields []interface{}
}

// Config mirrors the teacher's zap.Config construction knobs, trimmed to
// what this module's call sites (cmd/*, DefaultConfig/ProductionConfig/
// DevelopmentConfig) actually vary.
type Config struct {
	Level      Level
	TimeFormat string
	Output     *os.File
	Colorized  bool
	JSONFormat bool
	Service    string
	Fields     map[string]interface{}
}

// DefaultConfig returns console-encoded, colorized, info-level defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Colorized:  true,
		JSONFormat: false,
		Service:    "ingestion",
		Fields:     make(map[string]interface{}),
	}
}

// ProductionConfig returns JSON-encoded, uncolorized, info-level defaults.
func ProductionConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Colorized:  false,
		JSONFormat: true,
		Service:    "ingestion",
		Fields:     make(map[string]interface{}),
	}
}

// DevelopmentConfig returns console-encoded, colorized, debug-level defaults.
func DevelopmentConfig() *Config {
	return &Config{
		Level:      DebugLevel,
		TimeFormat: "15:04:05",
		Output:     os.Stdout,
		Colorized:  true,
		JSONFormat: false,
		Service:    "ingestion-dev",
		Fields:     make(map[string]interface{}),
	}
}

// NewLogger builds a Logger on top of a zap.Logger configured per cfg: JSON
// or console encoding, colorized level names in console mode, and the
// configured minimum level.
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	if cfg.Colorized && !cfg.JSONFormat {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var encoder zapcore.Encoder
	if cfg.JSONFormat {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), cfg.Level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	var fields []interface{}
	for k, v := range cfg.Fields {
		fields = append(fields, k, v)
	}
	if cfg.Service != "" {
		fields = append(fields, "service", cfg.Service)
	}

	sugar := base.Sugar()
	if len(fields) > 0 {
		sugar = sugar.With(fields...)
	}

	return &Logger{sugar: sugar, base: base, fields: fields}
}

// New builds a Logger tagged with a service name, the convenience
// constructor every cmd/ entrypoint uses.
func New(serviceName string) *Logger {
	return NewLogger(DefaultConfig()).WithField("service", serviceName)
}

// Debug logs a printf-style message at debug level.
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs a printf-style message at info level.
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a printf-style message at warn level.
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs a printf-style message at error level.
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Fatal logs a printf-style message at fatal level and terminates the process.
func (l *Logger) Fatal(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// WithField returns a new Logger carrying an additional structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := append(append([]interface{}{}, l.fields...), key, value)
	return &Logger{sugar: l.sugar.With(key, value), base: l.base, fields: fields}
}

// WithFields returns a new Logger carrying additional structured fields.
func (l *Logger) WithFields(kv map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(kv)*2)
	for k, v := range kv {
		args = append(args, k, v)
	}
	fields := append(append([]interface{}{}, l.fields...), args...)
	return &Logger{sugar: l.sugar.With(args...), base: l.base, fields: fields}
}

// WithError returns a new Logger carrying an "error" field.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Field is a zap.Field alias, letting callers build structured fields with
// this package's String/Int/Float64/... constructors instead of importing
// zap directly.
type Field = zap.Field

func String(key, value string) Field                 { return zap.String(key, value) }
func Int(key string, value int) Field                { return zap.Int(key, value) }
func Float64(key string, value float64) Field        { return zap.Float64(key, value) }
func Bool(key string, value bool) Field              { return zap.Bool(key, value) }
func Any(key string, value interface{}) Field        { return zap.Any(key, value) }
func Error(err error) Field                          { return zap.Error(err) }
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }

// With returns a new Logger carrying the given zap fields, built directly on
// zap's own SugaredLogger.With rather than this package's string-keyed
// WithField/WithFields pair.
func (l *Logger) With(fields ...Field) *Logger {
	args := make([]interface{}, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	newBase := l.base.With(fields...)
	return &Logger{sugar: newBase.Sugar(), base: newBase, fields: l.fields}
}

// Sugar returns the Logger itself: every method on Logger is already
// sugared, so this exists only so zap-shaped call sites compile unchanged.
func (l *Logger) Sugar() *Logger { return l }

// Sync flushes the underlying zap core's buffered log entries.
func (l *Logger) Sync() error { return l.base.Sync() }

// InfoWithFields logs msg at info level with the given structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...Field) { l.base.Info(msg, fields...) }

// ErrorWithFields logs msg at error level with the given structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...Field) { l.base.Error(msg, fields...) }

// WarnWithFields logs msg at warn level with the given structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...Field) { l.base.Warn(msg, fields...) }

// Named returns a new Logger with name appended to its logger name chain,
// zap's own mechanism for tagging a sub-component.
func (l *Logger) Named(name string) *Logger {
	newBase := l.base.Named(name)
	return &Logger{sugar: newBase.Sugar(), base: newBase, fields: l.fields}
}
