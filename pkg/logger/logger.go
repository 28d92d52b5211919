// Package logger provides structured logging functionality
// Using Uber Zap for high-performance, structured logging
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string
	Format      string
	Development bool
	OutputPaths []string
}

// New creates a new logger instance with a fixed level
func New(cfg Config) (*zap.Logger, error) {
	return NewWithLevel(cfg, zap.NewAtomicLevelAt(ParseLevel(cfg.Level)))
}

// NewWithLevel creates a logger whose level can be changed at runtime
// through the supplied atomic level.
func NewWithLevel(cfg Config, level zap.AtomicLevel) (*zap.Logger, error) {
	// Configure encoder
	var encoderConfig zapcore.EncoderConfig
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer := zapcore.AddSync(os.Stdout)
	if len(cfg.OutputPaths) > 0 {
		sink, _, err := zap.Open(cfg.OutputPaths...)
		if err != nil {
			return nil, err
		}
		writeSyncer = sink
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	options := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		options = append(options, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, options...), nil
}

// ParseLevel parses a textual level, falling back to info
func ParseLevel(text string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
