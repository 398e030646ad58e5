// Package observability provides the cache's structured logging and tracing
// setup, grounded on the teacher's zap-based environment switch
// (backend/internal/di/providers.go provideLogger).
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// Environment selects which zap preset a Cache logs with.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses console format.
func NewLogger(env Environment) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case Production:
		logger, err = zap.NewProduction()
	case Development:
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// NopLogger returns a logger that discards everything, used as the Config
// default so callers never need a nil check.
func NopLogger() *zap.Logger {
	return zap.NewNop()
}
