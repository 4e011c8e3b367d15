// Package logging builds the process-wide structured logger. Ground truth:
// the original's logging/logging_config.py, one setup function called once
// at startup; re-expressed over go.uber.org/zap the way geth-17-indexer
// configures its own logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. debug widens the level to Debug and switches
// to a human-readable console encoder; otherwise it's JSON at Info, suited
// to production log aggregation.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}
