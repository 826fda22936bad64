// Package logging wires up structured logging for emdx's repositories and
// background workers. The teacher prints through a UI console package
// instead of a logger; this concern is filled from the wider example pack
// (go.uber.org/zap) rather than imitating the teacher directly.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New builds a zap.Logger that writes JSON lines to logDir/emdx.log,
// rotated by lumberjack, plus a human-readable console encoder on stderr
// when verbose is set.
func New(logDir string, verbose bool) (*zap.Logger, error) {
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o750); err != nil {
			return nil, err
		}
	}

	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	var cores []zapcore.Core

	if logDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   logDir + "/emdx.log",
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), zapcore.InfoLevel))
	}

	if verbose {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), zapcore.DebugLevel))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// Nop returns a logger that discards everything, used by tests and any
// caller that hasn't configured a log directory yet.
func Nop() *zap.Logger { return zap.NewNop() }
