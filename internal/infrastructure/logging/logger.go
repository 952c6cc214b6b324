package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger together with the sinks it writes to.
type Logger struct {
	*zap.Logger
	closeSinks func()
}

// Field keys shared by every session component.
const (
	FieldFeature = "feature"
	FieldSession = "session"
	FieldScope   = "scope"
)

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	// OutputPaths are zap sink URLs; empty means stderr so stdout stays
	// free for the conversation
	OutputPaths []string
}

// DefaultConfig returns the configuration the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stderr"},
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	sink, closeSinks, err := zap.Open(paths...)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	core := zapcore.NewCore(newEncoder(cfg.Development), sink, zap.NewAtomicLevelAt(level))
	return &Logger{Logger: zap.New(core, opts...), closeSinks: closeSinks}, nil
}

// Close flushes buffered entries and releases file sinks.
func (l *Logger) Close() {
	// Sync on a terminal returns EINVAL on some platforms
	_ = l.Sync()
	if l.closeSinks != nil {
		l.closeSinks()
	}
}

// ForSession returns a child logger tagged with the feature, session and scope
// a controller serves. A nil logger yields a no-op logger.
func ForSession(logger *zap.Logger, feature, session, scope string) *zap.Logger {
	return OrNop(logger).With(
		zap.String(FieldFeature, feature),
		zap.String(FieldSession, session),
		zap.String(FieldScope, scope),
	)
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// newEncoder picks JSON for machines and colored console lines with a
// wall-clock time for someone watching a chat in a terminal.
func newEncoder(development bool) zapcore.Encoder {
	if development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(ec)
	}

	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(ec)
}
