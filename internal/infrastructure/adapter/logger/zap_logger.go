package logger

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// Options selects the zap configuration at startup
type Options struct {
	Production bool
	Level      string
	Output     string // stdout, stderr or a file path
	CallerInfo bool
	Service    string // added to every entry when set
}

// ZapLogger adapts zap to core.Logger; the level is held by the zap.AtomicLevel
type ZapLogger struct {
	logger *zap.Logger
	atom   zap.AtomicLevel
}

// NewZapLogger creates a logger at info level
func NewZapLogger(isProduction bool) core.Logger {
	return NewZapLoggerWithOptions(Options{Production: isProduction, Level: "info"})
}

// NewZapLoggerWithOptions builds a JSON logger in production and a colored console logger otherwise
func NewZapLoggerWithOptions(opts Options) core.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if opts.Production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.DisableCaller = !opts.CallerInfo
	cfg.DisableStacktrace = !opts.Production
	if opts.Output != "" {
		cfg.OutputPaths = []string{opts.Output}
	}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(core.ParseLogLevel(opts.Level)))

	var buildOpts []zap.Option
	if opts.Service != "" {
		buildOpts = append(buildOpts, zap.Fields(zap.String("service", opts.Service)))
	}

	zapLogger, err := cfg.Build(buildOpts...)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return &ZapLogger{logger: zapLogger, atom: cfg.Level}
}

// NewZapLoggerFromCore wraps an existing core, typically an observer in tests
func NewZapLoggerFromCore(zc zapcore.Core, level core.LogLevel) core.Logger {
	return &ZapLogger{
		logger: zap.New(zc),
		atom:   zap.NewAtomicLevelAt(toZapLevel(level)),
	}
}

func toZapLevel(level core.LogLevel) zapcore.Level {
	switch level {
	case core.LogLevelDebug:
		return zapcore.DebugLevel
	case core.LogLevelWarn:
		return zapcore.WarnLevel
	case core.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) core.LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return core.LogLevelDebug
	case level == zapcore.InfoLevel:
		return core.LogLevelInfo
	case level == zapcore.WarnLevel:
		return core.LogLevelWarn
	default:
		return core.LogLevelError
	}
}

// SetLevel changes the minimum level of this logger and every copy sharing its core
func (l *ZapLogger) SetLevel(level core.LogLevel) {
	l.atom.SetLevel(toZapLevel(level))
}

// GetLevel gets the current log level
func (l *ZapLogger) GetLevel() core.LogLevel {
	return fromZapLevel(l.atom.Level())
}

// toZapFields converts fields in key order so entries are stable across runs
func toZapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zapFields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zapFields = append(zapFields, zap.Any(k, fields[k]))
	}
	return zapFields
}

func (l *ZapLogger) write(level zapcore.Level, message string, fields map[string]any) {
	if !l.atom.Enabled(level) {
		return
	}
	if ce := l.logger.Check(level, message); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

// Debug logs debug messages
func (l *ZapLogger) Debug(message string, fields map[string]any) {
	l.write(zapcore.DebugLevel, message, fields)
}

// Info logs informational messages
func (l *ZapLogger) Info(message string, fields map[string]any) {
	l.write(zapcore.InfoLevel, message, fields)
}

// Warn logs warning messages
func (l *ZapLogger) Warn(message string, fields map[string]any) {
	l.write(zapcore.WarnLevel, message, fields)
}

// Error logs error messages
func (l *ZapLogger) Error(message string, fields map[string]any) {
	l.write(zapcore.ErrorLevel, message, fields)
}

// Flush ensures all buffered logs are written
func (l *ZapLogger) Flush() error {
	return l.logger.Sync()
}
