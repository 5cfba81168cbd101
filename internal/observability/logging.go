// Package observability builds the zap loggers shared by the raid commands
// and the battles they run.
package observability

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/raid/internal/config"
)

// NewLogger builds the process logger from cfg. It writes to stderr, or to
// cfg.File when set, so report tables on stdout stay clean. Above debug level
// repeated messages are sampled; at debug every dice roll is kept.
//
// Precondition: cfg passed config.Validate.
// Postcondition: the logger is named "raid".
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	path := "stderr"
	if cfg.File != "" {
		path = cfg.File
	}
	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log output %q: %w", path, err)
	}

	core := zapcore.NewCore(enc, sink, level)
	if level > zapcore.DebugLevel {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}
	return zap.New(core, zap.ErrorOutput(sink), zap.AddCaller()).Named("raid"), nil
}

// ForBattle scopes logger to battle index of a run. seed is the run seed;
// zero means unseeded and is not logged.
func ForBattle(logger *zap.Logger, index int, seed uint64) *zap.Logger {
	if seed == 0 {
		return logger.With(zap.Int("index", index))
	}
	return logger.With(zap.Int("index", index), zap.Uint64("seed", seed+uint64(index)))
}
