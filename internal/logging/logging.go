// Package logging builds the structured logger shared by the CLI and the
// HTTP server.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing to w at level. Debug level also adds
// caller information.
func New(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), level)

	var opts []zap.Option
	if level <= zapcore.DebugLevel {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}

// Level picks debug when verbose, else base.
func Level(verbose bool, base zapcore.Level) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return base
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
