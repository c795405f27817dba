package netsplit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the logger used by the command line tool: console output at debug
// level when verbose, JSON at info level otherwise
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// compNames lists component ids for log fields
func compNames[T Component](comps []T) []string {
	names := make([]string, len(comps))
	for idx, c := range comps {
		names[idx] = c.CompID()
	}
	return names
}
