// Package qlog constructs the structured logger shared by the CLI and the
// library entry points. Grounded on `cmd/nerd/main.go`'s
// zap.NewProductionConfig()/debug-level-under-verbose pattern
// (contributed by theRebelliousNerd-codenerd).
package qlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile JSON logger, switched to debug level when
// verbose is set. Callers own the returned logger and should Sync() it
// before exiting.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything, for library callers that
// don't want qsol's internal logging.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// NewToFile builds a logger writing the qsol.log artifact (spec §6
// "qsol.log -- textual log"): the production JSON encoder swapped for a
// plain console encoder, since the artifact is meant to be human-read
// rather than machine-parsed.
func NewToFile(verbose bool, path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
