// ABOUTME: Application logger construction.
// ABOUTME: Builds the shared zap logger with an optional debug level.

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. Debug mode lowers the level and
// keeps the production JSON encoding so log shipping stays uniform.
func New(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
