// Package logx provides the structured logging interface the engine logs
// through; the index store and matcher do not log. It is intentionally narrow so callers
// can supply their own implementation without taking a dependency on zap.
package logx

import (
	"os"

	"go.uber.org/zap"
)

// Logger is the logging surface every component depends on.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// zapLogger adapts a zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds the default production logger: JSON output to stderr at info
// level.
func New() Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op core rather than crash construction over logging.
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

// NewDevelopment builds a human-readable logger suited to the cmd/audioid tool.
func NewDevelopment() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	l, err := cfg.Build()
	if err != nil {
		os.Stderr.WriteString("logx: failed to build development logger: " + err.Error() + "\n")
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Infof(format string, args ...any)  { z.sugar.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...any)  { z.sugar.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...any) { z.sugar.Errorf(format, args...) }
func (z *zapLogger) Debugf(format string, args ...any) { z.sugar.Debugf(format, args...) }

// Nop returns a Logger that discards everything, useful in tests.
func Nop() Logger { return &zapLogger{sugar: zap.NewNop().Sugar()} }
