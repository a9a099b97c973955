package config

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a JSON logger at the configured level.  It writes to a
// rotated file when a log file is configured and to stderr otherwise.
func (l Log) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	var w zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if l.File != "" {
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename: l.File,
			MaxSize:  l.MaxSizeMB,
		})
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, level)
	return zap.New(core), nil
}
